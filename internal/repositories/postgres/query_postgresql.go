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

type QueryPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQueryPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QueryRepository {
	return &QueryPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QueryPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QueryPostgreSQL) Create(ctx context.Context, tx *gorm.DB, query *models.Query) error {
	if err := q.getDB(tx).WithContext(ctx).Create(query).Error; err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}
	return nil
}

func (q *QueryPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Query, error) {
	var query models.Query
	err := q.getDB(tx).WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("query_responses.created_at ASC")
		}).
		First(&query, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &query, nil
}

func (q *QueryPostgreSQL) ListForUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.QueryFilters) ([]*models.Query, int64, error) {
	query := q.getDB(tx).WithContext(ctx).
		Model(&models.Query{}).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count queries: %w", err)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var queries []*models.Query
	err := query.
		Preload("Responses").
		Order("created_at DESC").
		Find(&queries).Error

	return queries, total, err
}

func (q *QueryPostgreSQL) AddResponse(ctx context.Context, tx *gorm.DB, response *models.QueryResponse) error {
	if err := q.getDB(tx).WithContext(ctx).Create(response).Error; err != nil {
		return fmt.Errorf("failed to add query response: %w", err)
	}
	return nil
}

func (q *QueryPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.QueryStatus) error {
	result := q.getDB(tx).WithContext(ctx).
		Model(&models.Query{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the query; response rows go with it via the schema-level
// cascade on query_responses.
func (q *QueryPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := q.getDB(tx).WithContext(ctx).Delete(&models.Query{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
