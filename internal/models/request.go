package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestActive    RequestStatus = "active"
	RequestCompleted RequestStatus = "completed"
)

type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityMedium RequestPriority = "medium"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

type FieldType string

const (
	FieldText      FieldType = "text"
	FieldNumber    FieldType = "number"
	FieldFile      FieldType = "file"
	FieldPhoto     FieldType = "photo"
	FieldVoiceNote FieldType = "voice_note"
)

var AllFieldTypes = []FieldType{FieldText, FieldNumber, FieldFile, FieldPhoto, FieldVoiceNote}

// DataRequest is the unit of work: a creator defines a field template and
// fans it out to a set of assignees, each of whom fills their own copy.
type DataRequest struct {
	ID          string  `json:"id" gorm:"primaryKey;size:255"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`

	// Optional voice-note attached to the description. Upload handling is an
	// external collaborator; only the resulting URL+name are stored here.
	VoiceNoteURL  *string `json:"voice_note_url" gorm:"size:500"`
	VoiceNoteName *string `json:"voice_note_name" gorm:"size:255"`

	// Creator identity and org units, denormalized for visibility filtering.
	CreatedBy         string   `json:"created_by" gorm:"not null;index;size:255"`
	CreatorName       string   `json:"creator_name" gorm:"not null;size:100"`
	CreatorRole       UserRole `json:"creator_role" gorm:"not null;size:32"`
	CreatorSchoolID   *string  `json:"creator_school_id" gorm:"size:255"`
	CreatorClusterID  *string  `json:"creator_cluster_id" gorm:"size:255"`
	CreatorDistrictID *string  `json:"creator_district_id" gorm:"size:255"`

	DueDate  *time.Time      `json:"due_date"`
	Priority RequestPriority `json:"priority" gorm:"default:medium;size:16" validate:"omitempty,oneof=low medium high urgent"`
	Status   RequestStatus   `json:"status" gorm:"default:active;index;size:16"`
	Archived bool            `json:"archived" gorm:"default:false;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Fields    []RequestField    `json:"fields" gorm:"foreignKey:RequestID"`
	Assignees []RequestAssignee `json:"assignees" gorm:"foreignKey:RequestID"`

	// Computed fields (not stored)
	AssigneeCount  int `json:"assignee_count" gorm:"-"`
	CompletedCount int `json:"completed_count" gorm:"-"`
}

// RequestField is one named, typed input slot on a request. Field IDs are
// stable across all assignees so responses correlate by ID, not position.
type RequestField struct {
	ID        string    `json:"id" gorm:"primaryKey;size:255"`
	RequestID string    `json:"request_id" gorm:"not null;index;size:255"`
	Name      string    `json:"name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Type      FieldType `json:"type" gorm:"not null;size:16" validate:"required,oneof=text number file photo voice_note"`
	Required  bool      `json:"required" gorm:"default:false"`
	Position  int       `json:"position" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DataRequest) TableName() string {
	return "data_requests"
}

func (RequestField) TableName() string {
	return "request_fields"
}

func (r *DataRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (f *RequestField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
