package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationRequestAssigned  NotificationType = "request_assigned"
	NotificationRequestDelegated NotificationType = "request_delegated"
	NotificationRequestSubmitted NotificationType = "request_submitted"
	NotificationRequestOverdue   NotificationType = "request_overdue"
)

type NotificationPriority string

const (
	NotifyPriorityNormal NotificationPriority = "normal"
	NotifyPriorityHigh   NotificationPriority = "high"
)

type Notification struct {
	ID       string               `json:"id" gorm:"primaryKey;size:255"`
	UserID   string               `json:"user_id" gorm:"not null;index;size:255"`
	Type     NotificationType     `json:"type" gorm:"not null;size:32"`
	Title    string               `json:"title" gorm:"not null;size:200"`
	Message  string               `json:"message" gorm:"type:text"`
	Priority NotificationPriority `json:"priority" gorm:"default:normal;size:16"`

	// Optional link back to the originating request.
	RequestID *string `json:"request_id" gorm:"index;size:255"`

	Read   bool       `json:"read" gorm:"default:false;index"`
	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
