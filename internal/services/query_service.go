package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

type queryService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQueryService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) QueryService {
	return &queryService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *queryService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *queryService) Create(ctx context.Context, req *CreateQueryRequest, fromUserID string) (*models.Query, error) {
	s.logger.Info("Creating query", "from_user_id", fromUserID, "to_user_id", req.ToUserID)

	if errs := s.validator.ValidateStruct(req); len(errs) > 0 {
		return nil, errs
	}

	exists, err := s.repo.User().ExistsByID(ctx, req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check recipient: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	query := &models.Query{
		Subject:    req.Subject,
		Body:       req.Body,
		FromUserID: fromUserID,
		ToUserID:   req.ToUserID,
		Status:     models.QueryOpen,
	}
	if err := s.repo.Query().Create(ctx, nil, query); err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}

	return query, nil
}

func (s *queryService) GetByID(ctx context.Context, id string, userID string) (*models.Query, error) {
	query, err := s.repo.Query().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQueryNotFound
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	if query.FromUserID != userID && query.ToUserID != userID {
		return nil, NewPermissionError(userID, id, "query", "read", "not a participant")
	}

	return query, nil
}

func (s *queryService) ListForUser(ctx context.Context, userID string, filters repositories.QueryFilters) (*QueryListResponse, error) {
	queries, total, err := s.repo.Query().ListForUser(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}

	page, size := pageFromFilters(filters.Limit, filters.Offset)
	return &QueryListResponse{
		Queries: queries,
		Total:   total,
		Page:    page,
		Size:    size,
	}, nil
}

func (s *queryService) Respond(ctx context.Context, id string, req *RespondQueryRequest, userID string) (*models.Query, error) {
	if errs := s.validator.ValidateStruct(req); len(errs) > 0 {
		return nil, errs
	}

	query, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if query.Status == models.QueryClosed {
		return nil, NewBusinessRuleError("query_closed", "cannot respond to a closed query")
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get responder: %w", err)
	}

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		response := &models.QueryResponse{
			QueryID:   query.ID,
			UserID:    user.ID,
			UserName:  user.FullName,
			Body:      req.Body,
			CreatedAt: time.Now(),
		}
		if err := s.repo.Query().AddResponse(ctx, tx, response); err != nil {
			return err
		}

		// The recipient's first reply flips the query to answered.
		if query.Status == models.QueryOpen && userID == query.ToUserID {
			return s.repo.Query().UpdateStatus(ctx, tx, query.ID, models.QueryAnswered)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to respond to query: %w", err)
	}

	return s.GetByID(ctx, id, userID)
}

func (s *queryService) CloseQuery(ctx context.Context, id string, userID string) error {
	query, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if query.FromUserID != userID {
		return NewPermissionError(userID, id, "query", "close", "only the opener may close a query")
	}

	if err := s.repo.Query().UpdateStatus(ctx, nil, id, models.QueryClosed); err != nil {
		return fmt.Errorf("failed to close query: %w", err)
	}
	return nil
}

func (s *queryService) Delete(ctx context.Context, id string, userID string) error {
	query, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if query.FromUserID != userID {
		return NewPermissionError(userID, id, "query", "delete", "only the opener may delete a query")
	}

	if err := s.repo.Query().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}

	s.logger.Info("Query deleted", "query_id", id, "user_id", userID)
	return nil
}
