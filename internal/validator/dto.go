package validator

import (
	"time"

	"gorm.io/datatypes"

	"github.com/taleemhub/monitoring-service/internal/models"
)

// RequestCreateRequest represents the request structure for creating a data request
type RequestCreateRequest struct {
	Title         string                 `json:"title" validate:"required,request_title"`
	Description   *string                `json:"description" validate:"omitempty,max=2000"`
	VoiceNoteURL  *string                `json:"voice_note_url" validate:"omitempty,url,max=500"`
	VoiceNoteName *string                `json:"voice_note_name" validate:"omitempty,max=200"`
	DueDate       *time.Time             `json:"due_date" validate:"omitempty,future_date"`
	Priority      models.RequestPriority `json:"priority" validate:"omitempty,request_priority"`
	Fields        []FieldDefRequest      `json:"fields" validate:"required,min=1,max=50,dive"`
	AssigneeIDs   []string               `json:"assignee_ids" validate:"required,min=1,max=500,dive,required"`

	// Set from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// FieldDefRequest is a single field definition in a request's template
type FieldDefRequest struct {
	Name     string           `json:"name" validate:"required,max=100"`
	Type     models.FieldType `json:"type" validate:"required,field_type"`
	Required bool             `json:"required"`
}

// RequestUpdateRequest represents the request structure for updating a data request.
// The field template is deliberately absent: fields are immutable after creation
// on the wire, and lock fully once any assignee has submitted.
type RequestUpdateRequest struct {
	Title       *string                 `json:"title" validate:"omitempty,request_title"`
	Description *string                 `json:"description" validate:"omitempty,max=2000"`
	DueDate     *time.Time              `json:"due_date" validate:"omitempty,future_date"`
	Priority    *models.RequestPriority `json:"priority" validate:"omitempty,request_priority"`
	Archived    *bool                   `json:"archived"`
}

// SubmitResponsesRequest carries an assignee's answers to a request's fields
type SubmitResponsesRequest struct {
	Responses []FieldResponseRequest `json:"responses" validate:"required,min=1,dive"`
}

// FieldResponseRequest is one answer, correlated to its field by ID
type FieldResponseRequest struct {
	FieldID  string         `json:"field_id" validate:"required"`
	Value    datatypes.JSON `json:"value"`
	FileURL  *string        `json:"file_url" validate:"omitempty,url,max=500"`
	FileName *string        `json:"file_name" validate:"omitempty,max=200"`
}

// DelegateRequest fans a request out to further assignees under the
// delegator's own scope
type DelegateRequest struct {
	AssigneeIDs []string `json:"assignee_ids" validate:"required,min=1,max=500,dive,required"`
}

// QueryCreateRequest opens a free-form query to another user
type QueryCreateRequest struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Body     string `json:"body" validate:"required,max=5000"`
	ToUserID string `json:"to_user_id" validate:"required"`
}

// QueryResponseRequest answers an open query
type QueryResponseRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}
