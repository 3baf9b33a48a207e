package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/events"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// notificationService persists in-app notifications and mirrors them onto the
// event bus for external delivery (push, SMS) by downstream consumers.
type notificationService struct {
	repo           repositories.Repository
	db             *gorm.DB
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewNotificationService(
	repo repositories.Repository,
	db *gorm.DB,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
) NotificationService {
	return &notificationService{
		repo:           repo,
		db:             db,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      validator,
	}
}

func (s *notificationService) SendBulkNotification(ctx context.Context, userIDs []string, notification *NotificationRequest) error {
	if len(userIDs) == 0 {
		return nil
	}

	if errs := s.validator.ValidateStruct(notification); len(errs) > 0 {
		return errs
	}

	priority := notification.Priority
	if priority == "" {
		priority = models.NotifyPriorityNormal
	}

	rows := make([]*models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, &models.Notification{
			UserID:    userID,
			Type:      notification.Type,
			Title:     notification.Title,
			Message:   notification.Message,
			Priority:  priority,
			RequestID: notification.RequestID,
		})
	}

	if err := s.repo.Notification().CreateBatch(ctx, nil, rows); err != nil {
		return fmt.Errorf("failed to persist notifications: %w", err)
	}

	event := events.NewEvent(events.EventBulkNotification, events.BulkNotificationEvent{
		UserIDs:  userIDs,
		Type:     string(notification.Type),
		Title:    notification.Title,
		Message:  notification.Message,
		Priority: string(priority),
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		// In-app rows are already written; delivery failure is not fatal.
		s.logger.Error("Failed to publish bulk notification event", "error", err)
	}

	s.logger.Info("Bulk notification sent", "type", notification.Type, "recipients", len(userIDs))
	return nil
}

func (s *notificationService) ListForUser(ctx context.Context, userID string, filters repositories.NotificationFilters) (*NotificationListResponse, error) {
	notifications, total, err := s.repo.Notification().ListForUser(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	page, size := pageFromFilters(filters.Limit, filters.Offset)
	return &NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		Page:          page,
		Size:          size,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string, userID string) error {
	if err := s.repo.Notification().MarkRead(ctx, nil, id, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
