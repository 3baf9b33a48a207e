package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleemhub/monitoring-service/internal/events"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// failingPublisher simulates a broker outage.
type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event *events.Event) error {
	return errors.New("broker unavailable")
}
func (failingPublisher) Close() error { return nil }

func newNotificationFixture(publisher events.EventPublisher) (NotificationService, *mockRepository) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newMockRepository()
	return NewNotificationService(repo, nil, publisher, logger, validator.New()), repo
}

func TestNotificationService_SendBulkNotification(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	service, repo := newNotificationFixture(publisher)

	requestID := "req-1"
	err := service.SendBulkNotification(context.Background(), []string{"user-1", "user-2"}, &NotificationRequest{
		Type:      models.NotificationRequestAssigned,
		Title:     "New data request",
		Message:   "Amina Khan assigned you: Enrollment verification",
		RequestID: &requestID,
	})
	require.NoError(t, err)

	t.Run("persists a row per recipient", func(t *testing.T) {
		for _, userID := range []string{"user-1", "user-2"} {
			rows, total, err := repo.Notification().ListForUser(context.Background(), nil, userID, repositories.NotificationFilters{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, rows, 1)
			assert.Equal(t, models.NotificationRequestAssigned, rows[0].Type)
			assert.Equal(t, models.NotifyPriorityNormal, rows[0].Priority, "priority defaults to normal")
			assert.False(t, rows[0].Read)
			require.NotNil(t, rows[0].RequestID)
			assert.Equal(t, requestID, *rows[0].RequestID)
		}
	})

	t.Run("publishes one bulk event", func(t *testing.T) {
		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)

		event := published[0]
		assert.Equal(t, events.EventBulkNotification, event.Type)
		assert.Equal(t, "monitoring-service", event.Source)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())

		payload, ok := event.Data.(events.BulkNotificationEvent)
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"user-1", "user-2"}, payload.UserIDs)
		assert.Equal(t, string(models.NotificationRequestAssigned), payload.Type)
	})
}

func TestNotificationService_SendBulkNotification_NoRecipients(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	service, _ := newNotificationFixture(publisher)

	err := service.SendBulkNotification(context.Background(), nil, &NotificationRequest{
		Type:    models.NotificationRequestAssigned,
		Title:   "New data request",
		Message: "msg",
	})
	require.NoError(t, err)
	assert.Empty(t, publisher.GetPublishedEvents(), "no recipients means no event")
}

func TestNotificationService_SendBulkNotification_InvalidPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	service, _ := newNotificationFixture(publisher)

	err := service.SendBulkNotification(context.Background(), []string{"user-1"}, &NotificationRequest{
		Type: models.NotificationRequestAssigned,
		// Title and Message missing.
	})
	assert.Error(t, err)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestNotificationService_SendBulkNotification_PublishFailureNotFatal(t *testing.T) {
	service, repo := newNotificationFixture(failingPublisher{})

	err := service.SendBulkNotification(context.Background(), []string{"user-1"}, &NotificationRequest{
		Type:    models.NotificationRequestSubmitted,
		Title:   "Response submitted",
		Message: "msg",
	})
	require.NoError(t, err, "in-app rows survive a broker outage")

	rows, _, err := repo.Notification().ListForUser(context.Background(), nil, "user-1", repositories.NotificationFilters{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNotificationService_ListForUser_UnreadFilter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	service, repo := newNotificationFixture(publisher)

	require.NoError(t, service.SendBulkNotification(context.Background(), []string{"user-1"}, &NotificationRequest{
		Type:    models.NotificationRequestAssigned,
		Title:   "First",
		Message: "msg",
	}))
	require.NoError(t, service.SendBulkNotification(context.Background(), []string{"user-1"}, &NotificationRequest{
		Type:    models.NotificationRequestAssigned,
		Title:   "Second",
		Message: "msg",
	}))

	all, err := service.ListForUser(context.Background(), "user-1", repositories.NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, all.Notifications, 2)

	require.NoError(t, service.MarkRead(context.Background(), all.Notifications[0].ID, "user-1"))

	unread := true
	filtered, err := service.ListForUser(context.Background(), "user-1", repositories.NotificationFilters{Unread: &unread})
	require.NoError(t, err)
	require.Len(t, filtered.Notifications, 1)
	assert.False(t, filtered.Notifications[0].Read)

	// The read row carries its timestamp.
	rows, _, err := repo.Notification().ListForUser(context.Background(), nil, "user-1", repositories.NotificationFilters{})
	require.NoError(t, err)
	for _, n := range rows {
		if n.ID == all.Notifications[0].ID {
			assert.True(t, n.Read)
			assert.NotNil(t, n.ReadAt)
		}
	}
}

func TestNotificationService_MarkRead_ScopedToOwner(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := events.NewMockEventPublisher(logger)
	service, _ := newNotificationFixture(publisher)

	require.NoError(t, service.SendBulkNotification(context.Background(), []string{"user-1"}, &NotificationRequest{
		Type:    models.NotificationRequestAssigned,
		Title:   "First",
		Message: "msg",
	}))

	list, err := service.ListForUser(context.Background(), "user-1", repositories.NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)

	err = service.MarkRead(context.Background(), list.Notifications[0].ID, "user-2")
	assert.ErrorIs(t, err, ErrNotificationNotFound, "another user's notification is invisible")

	assert.ErrorIs(t, service.MarkRead(context.Background(), "no-such-id", "user-1"), ErrNotificationNotFound)
}
