package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/cache"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
)

type RequestPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewRequestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.RequestRepository {
	return &RequestPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise the default DB.
func (r *RequestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create persists a request together with its field template and any
// assignee rows already attached to the aggregate.
func (r *RequestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error {
	if err := r.getDB(tx).WithContext(ctx).Create(request).Error; err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, r.cacheManager.Request, fmt.Sprintf("creator:%s:*", request.CreatedBy))
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Request, "list:*")

	return nil
}

// GetByID retrieves a request with its fields, assignees and their responses.
func (r *RequestPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.DataRequest, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	var request models.DataRequest

	err := r.cacheManager.Request.CacheOrExecute(ctx, cacheKey, &request, cache.RequestCacheConfig.TTL, func() (interface{}, error) {
		var dbRequest models.DataRequest
		err := r.getDB(tx).WithContext(ctx).
			Preload("Fields", func(db *gorm.DB) *gorm.DB {
				return db.Order("request_fields.position ASC")
			}).
			Preload("Assignees").
			Preload("Assignees.Responses").
			First(&dbRequest, "id = ?", id).Error
		if err != nil {
			return nil, err
		}

		r.calculateComputedFields(&dbRequest)
		return &dbRequest, nil
	})

	if err != nil {
		return nil, err
	}

	return &request, nil
}

// Update patches the mutable columns of a request. The field template is
// deliberately not part of the update set.
func (r *RequestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error {
	if err := r.getDB(tx).WithContext(ctx).Model(&models.DataRequest{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
		"title":       request.Title,
		"description": request.Description,
		"priority":    request.Priority,
		"due_date":    request.DueDate,
		"status":      request.Status,
		"archived":    request.Archived,
		"updated_at":  request.UpdatedAt,
	}).Error; err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}

	cache.InvalidateRequestCache(ctx, r.cacheManager, request.ID, request.CreatedBy)

	return nil
}

// Delete removes a request, its fields, its assignees and their responses.
// The cascade is application-managed: no orphan assignee rows may survive.
func (r *RequestPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	db := r.getDB(tx)

	var request models.DataRequest
	if err := db.WithContext(ctx).Select("id, created_by").First(&request, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to get request before delete: %w", err)
	}

	var assigneeIDs []string
	if err := db.WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Where("request_id = ?", id).
		Pluck("id", &assigneeIDs).Error; err != nil {
		return fmt.Errorf("failed to collect assignees before delete: %w", err)
	}

	if len(assigneeIDs) > 0 {
		if err := db.WithContext(ctx).
			Where("assignee_id IN ?", assigneeIDs).
			Delete(&models.FieldResponse{}).Error; err != nil {
			return fmt.Errorf("failed to delete field responses: %w", err)
		}
	}
	if err := db.WithContext(ctx).
		Where("request_id = ?", id).
		Delete(&models.RequestAssignee{}).Error; err != nil {
		return fmt.Errorf("failed to delete assignees: %w", err)
	}
	if err := db.WithContext(ctx).
		Where("request_id = ?", id).
		Delete(&models.RequestField{}).Error; err != nil {
		return fmt.Errorf("failed to delete fields: %w", err)
	}
	if err := db.WithContext(ctx).Unscoped().
		Delete(&models.DataRequest{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}

	cache.InvalidateRequestCache(ctx, r.cacheManager, id, request.CreatedBy)

	return nil
}

// List retrieves requests with filters and pagination.
func (r *RequestPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.RequestFilters) ([]*models.DataRequest, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.DataRequest{})
	query = r.helpers.ApplyRequestFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var requests []*models.DataRequest
	if err := query.
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("request_fields.position ASC")
		}).
		Preload("Assignees").
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	for _, request := range requests {
		r.calculateComputedFields(request)
	}

	return requests, total, nil
}

// ListCandidatesForUser over-approximates the visibility rule in SQL so the
// service layer only has to run hierarchy.CanView over a small candidate
// set: rows the viewer created, is assigned to, or whose creator sits in one
// of the viewer's organizational units.
func (r *RequestPostgreSQL) ListCandidatesForUser(ctx context.Context, tx *gorm.DB, viewer *models.User, filters repositories.RequestFilters) ([]*models.DataRequest, error) {
	db := r.getDB(tx).WithContext(ctx).Model(&models.DataRequest{})
	db = r.helpers.ApplyRequestFilters(db, filters)

	if viewer.Role != models.RoleCEO {
		cond := db.Session(&gorm.Session{NewDB: true}).
			Where("data_requests.created_by = ?", viewer.ID).
			Or("data_requests.id IN (?)",
				r.getDB(tx).Model(&models.RequestAssignee{}).
					Select("request_id").
					Where("user_id = ?", viewer.ID))

		if viewer.DistrictID != nil && *viewer.DistrictID != "" {
			cond = cond.Or("data_requests.creator_district_id = ?", *viewer.DistrictID)
		}
		if viewer.ClusterID != nil && *viewer.ClusterID != "" {
			cond = cond.Or("data_requests.creator_cluster_id = ?", *viewer.ClusterID)
		}
		if viewer.SchoolID != nil && *viewer.SchoolID != "" {
			cond = cond.Or("data_requests.creator_school_id = ?", *viewer.SchoolID)
		}
		db = db.Where(cond)
	}

	db = r.helpers.ApplyPaginationAndSort(db, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var requests []*models.DataRequest
	if err := db.
		Preload("Fields", func(q *gorm.DB) *gorm.DB {
			return q.Order("request_fields.position ASC")
		}).
		Preload("Assignees").
		Find(&requests).Error; err != nil {
		return nil, err
	}

	for _, request := range requests {
		r.calculateComputedFields(request)
	}

	return requests, nil
}

// IsCreator checks whether a user created a request.
func (r *RequestPostgreSQL) IsCreator(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.DataRequest{}).
		Where("id = ? AND created_by = ?", requestID, userID).
		Count(&count).Error

	return count > 0, err
}

// HasCompletedAssignees reports whether any assignee of the request has
// already submitted; the field template is locked once this is true.
func (r *RequestPostgreSQL) HasCompletedAssignees(ctx context.Context, tx *gorm.DB, requestID string) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Where("request_id = ? AND status = ?", requestID, models.AssigneeCompleted).
		Count(&count).Error

	return count > 0, err
}

// GetStats retrieves completion statistics for a request.
func (r *RequestPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, id string) (*repositories.RequestStats, error) {
	db := r.getDB(tx)
	stats := &repositories.RequestStats{}

	rows := []struct {
		Status models.AssigneeStatus
		Count  int
	}{}
	if err := db.WithContext(ctx).
		Model(&models.RequestAssignee{}).
		Select("status, COUNT(*) as count").
		Where("request_id = ?", id).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get request stats: %w", err)
	}

	for _, row := range rows {
		stats.TotalAssignees += row.Count
		switch row.Status {
		case models.AssigneeCompleted:
			stats.CompletedAssignees = row.Count
		case models.AssigneePending:
			stats.PendingAssignees = row.Count
		case models.AssigneeOverdue:
			stats.OverdueAssignees = row.Count
		}
	}

	if stats.TotalAssignees > 0 {
		stats.CompletionRate = float64(stats.CompletedAssignees) / float64(stats.TotalAssignees) * 100
	}

	return stats, nil
}

// GetCreatorStats retrieves aggregate statistics for a creator.
func (r *RequestPostgreSQL) GetCreatorStats(ctx context.Context, tx *gorm.DB, creatorID string) (*repositories.CreatorStats, error) {
	db := r.getDB(tx)
	stats := &repositories.CreatorStats{}

	var totalRequests int64
	db.WithContext(ctx).
		Model(&models.DataRequest{}).
		Where("created_by = ?", creatorID).
		Count(&totalRequests)

	var activeRequests int64
	db.WithContext(ctx).
		Model(&models.DataRequest{}).
		Where("created_by = ? AND status = ?", creatorID, models.RequestActive).
		Count(&activeRequests)

	var completedRequests int64
	db.WithContext(ctx).
		Model(&models.DataRequest{}).
		Where("created_by = ? AND status = ?", creatorID, models.RequestCompleted).
		Count(&completedRequests)

	var totalAssignees int64
	db.WithContext(ctx).
		Table("request_assignees ra").
		Joins("JOIN data_requests dr ON ra.request_id = dr.id").
		Where("dr.created_by = ?", creatorID).
		Count(&totalAssignees)

	var pendingResponses int64
	db.WithContext(ctx).
		Table("request_assignees ra").
		Joins("JOIN data_requests dr ON ra.request_id = dr.id").
		Where("dr.created_by = ? AND ra.status = ?", creatorID, models.AssigneePending).
		Count(&pendingResponses)

	stats.TotalRequests = int(totalRequests)
	stats.ActiveRequests = int(activeRequests)
	stats.CompletedRequests = int(completedRequests)
	stats.TotalAssignees = int(totalAssignees)
	stats.PendingResponses = int(pendingResponses)

	return stats, nil
}

// calculateComputedFields fills the non-stored aggregate counters.
func (r *RequestPostgreSQL) calculateComputedFields(request *models.DataRequest) {
	request.AssigneeCount = len(request.Assignees)

	completed := 0
	for _, a := range request.Assignees {
		if a.Status == models.AssigneeCompleted {
			completed++
		}
	}
	request.CompletedCount = completed
}
