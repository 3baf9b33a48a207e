package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssigneeStatus string

const (
	AssigneePending   AssigneeStatus = "pending"
	AssigneeCompleted AssigneeStatus = "completed"
	AssigneeOverdue   AssigneeStatus = "overdue"
)

// RequestAssignee is one (request, person) pairing: an independent response
// slate over the request's field template. Exactly one row exists per pair.
// Rows are never deleted on their own; they transition status and accumulate
// responses until the parent request is deleted.
type RequestAssignee struct {
	ID        string `json:"id" gorm:"primaryKey;size:255"`
	RequestID string `json:"request_id" gorm:"not null;index;size:255;uniqueIndex:idx_request_user"`
	UserID    string `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_request_user"`

	UserName   string   `json:"user_name" gorm:"not null;size:100"`
	UserRole   UserRole `json:"user_role" gorm:"not null;size:32"`
	SchoolID   *string  `json:"school_id" gorm:"size:255"`
	SchoolName *string  `json:"school_name" gorm:"size:200"`

	Status      AssigneeStatus `json:"status" gorm:"default:pending;index;size:16"`
	SubmittedAt *time.Time     `json:"submitted_at"`

	// Delegation provenance: set when this row was added by an existing
	// assignee rather than the request creator.
	DelegatedBy *string `json:"delegated_by" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Responses []FieldResponse `json:"responses" gorm:"foreignKey:AssigneeID"`
}

// FieldResponse holds one assignee's answer to one field, keyed by the stable
// field ID. Value is typed per the field's type; file-like types instead
// carry a URL+filename produced by the upload collaborator.
type FieldResponse struct {
	ID         string `json:"id" gorm:"primaryKey;size:255"`
	AssigneeID string `json:"assignee_id" gorm:"not null;index;size:255;uniqueIndex:idx_assignee_field"`
	FieldID    string `json:"field_id" gorm:"not null;size:255;uniqueIndex:idx_assignee_field"`

	Value    datatypes.JSON `json:"value" gorm:"type:jsonb"`
	FileURL  *string        `json:"file_url" gorm:"size:500"`
	FileName *string        `json:"file_name" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequestAssignee) TableName() string {
	return "request_assignees"
}

func (FieldResponse) TableName() string {
	return "field_responses"
}

func (a *RequestAssignee) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (r *FieldResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
