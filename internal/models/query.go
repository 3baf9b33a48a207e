package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QueryStatus string

const (
	QueryOpen     QueryStatus = "open"
	QueryAnswered QueryStatus = "answered"
	QueryClosed   QueryStatus = "closed"
)

// Query is a free-form question exchanged between staff, adjacent to the
// data-request workflow.
type Query struct {
	ID         string      `json:"id" gorm:"primaryKey;size:255"`
	Subject    string      `json:"subject" gorm:"not null;size:200" validate:"required,max=200"`
	Body       string      `json:"body" gorm:"type:text" validate:"required,max=5000"`
	FromUserID string      `json:"from_user_id" gorm:"not null;index;size:255"`
	ToUserID   string      `json:"to_user_id" gorm:"not null;index;size:255"`
	Status     QueryStatus `json:"status" gorm:"default:open;size:16"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Responses cascade with their query at the schema level, unlike
	// request_assignees where the cascade is application-managed.
	Responses []QueryResponse `json:"responses" gorm:"foreignKey:QueryID;constraint:OnDelete:CASCADE"`
}

type QueryResponse struct {
	ID       string `json:"id" gorm:"primaryKey;size:255"`
	QueryID  string `json:"query_id" gorm:"not null;index;size:255"`
	UserID   string `json:"user_id" gorm:"not null;size:255"`
	UserName string `json:"user_name" gorm:"not null;size:100"`
	Body     string `json:"body" gorm:"type:text" validate:"required,max=5000"`

	CreatedAt time.Time `json:"created_at"`
}

func (Query) TableName() string {
	return "queries"
}

func (QueryResponse) TableName() string {
	return "query_responses"
}

func (q *Query) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func (qr *QueryResponse) BeforeCreate(tx *gorm.DB) error {
	if qr.ID == "" {
		qr.ID = uuid.NewString()
	}
	return nil
}
