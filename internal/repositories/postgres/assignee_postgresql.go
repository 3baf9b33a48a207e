package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/cache"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
)

type AssigneePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAssigneePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssigneeRepository {
	return &AssigneePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AssigneePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create persists a new assignee row with its empty response template.
func (a *AssigneePostgreSQL) Create(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error {
	if err := a.getDB(tx).WithContext(ctx).Create(assignee).Error; err != nil {
		return fmt.Errorf("failed to create assignee: %w", err)
	}

	cache.SafeDelete(ctx, a.cacheManager.Request, fmt.Sprintf("id:%s", assignee.RequestID))
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Stats, fmt.Sprintf("request:%s:*", assignee.RequestID))

	return nil
}

func (a *AssigneePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.RequestAssignee, error) {
	var assignee models.RequestAssignee
	err := a.getDB(tx).WithContext(ctx).
		Preload("Responses").
		First(&assignee, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &assignee, nil
}

func (a *AssigneePostgreSQL) GetByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (*models.RequestAssignee, error) {
	var assignee models.RequestAssignee
	err := a.getDB(tx).WithContext(ctx).
		Preload("Responses").
		Where("request_id = ? AND user_id = ?", requestID, userID).
		First(&assignee).Error
	if err != nil {
		return nil, err
	}

	return &assignee, nil
}

func (a *AssigneePostgreSQL) ListByRequest(ctx context.Context, tx *gorm.DB, requestID string) ([]*models.RequestAssignee, error) {
	var assignees []*models.RequestAssignee
	err := a.getDB(tx).WithContext(ctx).
		Preload("Responses").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&assignees).Error

	return assignees, err
}

func (a *AssigneePostgreSQL) ExistsByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Where("request_id = ? AND user_id = ?", requestID, userID).
		Count(&count).Error

	return count > 0, err
}

// SaveResponses overwrites the assignee's responses and persists the new
// status/submittedAt in one logical write. Existing response rows for the
// same field IDs are replaced, not appended.
func (a *AssigneePostgreSQL) SaveResponses(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error {
	db := a.getDB(tx)

	if err := db.WithContext(ctx).
		Where("assignee_id = ?", assignee.ID).
		Delete(&models.FieldResponse{}).Error; err != nil {
		return fmt.Errorf("failed to clear previous responses: %w", err)
	}

	for i := range assignee.Responses {
		assignee.Responses[i].AssigneeID = assignee.ID
	}
	if len(assignee.Responses) > 0 {
		if err := db.WithContext(ctx).Create(&assignee.Responses).Error; err != nil {
			return fmt.Errorf("failed to save responses: %w", err)
		}
	}

	if err := db.WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Where("id = ?", assignee.ID).
		Updates(map[string]interface{}{
			"status":       assignee.Status,
			"submitted_at": assignee.SubmittedAt,
			"updated_at":   assignee.UpdatedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to update assignee status: %w", err)
	}

	cache.SafeDelete(ctx, a.cacheManager.Request, fmt.Sprintf("id:%s", assignee.RequestID))
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Stats, fmt.Sprintf("request:%s:*", assignee.RequestID))

	return nil
}

func (a *AssigneePostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.AssigneeStatus) error {
	var assignee models.RequestAssignee
	if err := a.getDB(tx).WithContext(ctx).Select("id, request_id").First(&assignee, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to get assignee: %w", err)
	}

	if err := a.getDB(tx).WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error; err != nil {
		return err
	}

	cache.SafeDelete(ctx, a.cacheManager.Request, fmt.Sprintf("id:%s", assignee.RequestID))

	return nil
}

// ListOverduePending returns pending assignee rows whose parent request has a
// due date in the past.
func (a *AssigneePostgreSQL) ListOverduePending(ctx context.Context, tx *gorm.DB) ([]*models.RequestAssignee, error) {
	db := a.getDB(tx).WithContext(ctx)

	var assignees []*models.RequestAssignee
	err := db.
		Where("status = ? AND request_id IN (?)",
			models.AssigneePending,
			db.Model(&models.DataRequest{}).
				Select("id").
				Where("due_date IS NOT NULL AND due_date < ?", time.Now())).
		Find(&assignees).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue assignees: %w", err)
	}
	return assignees, nil
}
