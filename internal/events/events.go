package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const sourceName = "monitoring-service"

// Event types published by the monitoring service
const (
	EventRequestCreated   = "request.created"
	EventRequestDelegated = "request.delegated"
	EventRequestSubmitted = "request.submitted"
	EventRequestCompleted = "request.completed"
	EventRequestOverdue   = "request.overdue"
	EventBulkNotification = "system.bulk_notification"
)

// Event is the envelope every published message shares
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent wraps payload data in a fresh envelope
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    sourceName,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher abstracts the outbound message transport
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// RequestLifecycleEvent carries request fan-out changes to downstream
// consumers (push notification senders, reporting).
type RequestLifecycleEvent struct {
	RequestID   string   `json:"request_id"`
	Title       string   `json:"title"`
	ActorID     string   `json:"actor_id"`
	ActorName   string   `json:"actor_name"`
	AssigneeIDs []string `json:"assignee_ids,omitempty"`
}

// BulkNotificationEvent asks the notification consumer to fan a message out
// to a set of users.
type BulkNotificationEvent struct {
	UserIDs  []string `json:"user_ids"`
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority string   `json:"priority"`
}
