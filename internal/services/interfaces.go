package services

import (
	"context"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateRequestRequest = validator.RequestCreateRequest
type UpdateRequestRequest = validator.RequestUpdateRequest
type FieldDefRequest = validator.FieldDefRequest
type SubmitResponsesRequest = validator.SubmitResponsesRequest
type FieldResponseRequest = validator.FieldResponseRequest
type DelegateRequest = validator.DelegateRequest
type CreateQueryRequest = validator.QueryCreateRequest
type RespondQueryRequest = validator.QueryResponseRequest

type RequestResponse struct {
	*models.DataRequest
	CanEdit     bool `json:"can_edit"`
	CanDelete   bool `json:"can_delete"`
	CanDelegate bool `json:"can_delegate"`
	CanSubmit   bool `json:"can_submit"`

	// MyAssignee is the viewer's own assignee row, when they are one.
	MyAssignee *models.RequestAssignee `json:"my_assignee,omitempty"`
}

type RequestListResponse struct {
	Requests []*RequestResponse `json:"requests"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

type EligibleAssigneesResponse struct {
	Users []*models.User `json:"users"`
	Total int            `json:"total"`
}

type UserListResponse struct {
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type QueryListResponse struct {
	Queries []*models.Query `json:"queries"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
}

type NotificationListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	Size          int                    `json:"size"`
}

// NotificationRequest describes a notification to fan out to users
type NotificationRequest struct {
	Type     models.NotificationType     `json:"type" validate:"required"`
	Title    string                      `json:"title" validate:"required,max=200"`
	Message  string                      `json:"message" validate:"required"`
	Priority models.NotificationPriority `json:"priority"`

	RequestID *string `json:"request_id"`
}

// ExportResult is a rendered spreadsheet ready for download
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

type RequestService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateRequestRequest, creatorID string) (*RequestResponse, error)
	GetByID(ctx context.Context, id string, userID string) (*RequestResponse, error)
	Update(ctx context.Context, id string, req *UpdateRequestRequest, userID string) (*RequestResponse, error)
	Delete(ctx context.Context, id string, userID string) error

	// Listing applies the hierarchy visibility rule per viewer
	List(ctx context.Context, filters repositories.RequestFilters, userID string) (*RequestListResponse, error)

	// Response workflow
	SubmitResponses(ctx context.Context, requestID string, req *SubmitResponsesRequest, userID string) (*RequestResponse, error)
	Delegate(ctx context.Context, requestID string, req *DelegateRequest, delegatorID string) (*RequestResponse, error)

	// Statistics
	GetStats(ctx context.Context, id string, userID string) (*repositories.RequestStats, error)
	GetCreatorStats(ctx context.Context, creatorID string) (*repositories.CreatorStats, error)

	// MarkOverdueRequests sweeps pending assignees of past-due requests into
	// overdue and notifies them. Driven by the cron scheduler.
	MarkOverdueRequests(ctx context.Context) (int, error)

	// Permission checks
	CanEdit(ctx context.Context, requestID string, userID string) (bool, error)
	CanDelete(ctx context.Context, requestID string, userID string) (bool, error)
	CanDelegate(ctx context.Context, requestID string, userID string) (bool, error)
}

type DirectoryService interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filters repositories.UserFilters) (*UserListResponse, error)

	// EligibleAssignees returns the users the requester may assign work to,
	// per the role hierarchy and unit scoping. With a request ID, users
	// already assigned to that request are excluded.
	EligibleAssignees(ctx context.Context, requesterID string, requestID *string) (*EligibleAssigneesResponse, error)
}

type ExportService interface {
	// ExportRequest renders a request and all assignee responses as a
	// spreadsheet, one row per assignee, one column per field.
	ExportRequest(ctx context.Context, requestID string, userID string) (*ExportResult, error)
}

type NotificationService interface {
	SendBulkNotification(ctx context.Context, userIDs []string, notification *NotificationRequest) error
	ListForUser(ctx context.Context, userID string, filters repositories.NotificationFilters) (*NotificationListResponse, error)
	MarkRead(ctx context.Context, id string, userID string) error
}

type QueryService interface {
	Create(ctx context.Context, req *CreateQueryRequest, fromUserID string) (*models.Query, error)
	GetByID(ctx context.Context, id string, userID string) (*models.Query, error)
	ListForUser(ctx context.Context, userID string, filters repositories.QueryFilters) (*QueryListResponse, error)
	Respond(ctx context.Context, id string, req *RespondQueryRequest, userID string) (*models.Query, error)
	CloseQuery(ctx context.Context, id string, userID string) error
	Delete(ctx context.Context, id string, userID string) error
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Request() RequestService
	Directory() DirectoryService
	Export() ExportService
	Notification() NotificationService
	Query() QueryService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
