package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type RequestFilters struct {
	Status    *models.RequestStatus   `json:"status"`
	Priority  *models.RequestPriority `json:"priority"`
	CreatedBy *string                 `json:"created_by"`
	Archived  *bool                   `json:"archived"`
	DateFrom  *time.Time              `json:"date_from"`
	DateTo    *time.Time              `json:"date_to"`
	Limit     int                     `json:"limit"`
	Offset    int                     `json:"offset"`
	SortBy    string                  `json:"sort_by"`    // "created_at", "title", "due_date", "priority"
	SortOrder string                  `json:"sort_order"` // "asc", "desc"
}

type UserFilters struct {
	Role       *models.UserRole `json:"role"`
	DistrictID *string          `json:"district_id"`
	ClusterID  *string          `json:"cluster_id"`
	SchoolID   *string          `json:"school_id"`
	Query      string           `json:"query"` // name or phone search
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

type QueryFilters struct {
	Status *models.QueryStatus `json:"status"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type NotificationFilters struct {
	Unread *bool `json:"unread"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type RequestStats struct {
	TotalAssignees     int     `json:"total_assignees"`
	CompletedAssignees int     `json:"completed_assignees"`
	PendingAssignees   int     `json:"pending_assignees"`
	OverdueAssignees   int     `json:"overdue_assignees"`
	CompletionRate     float64 `json:"completion_rate"`
}

type CreatorStats struct {
	TotalRequests     int `json:"total_requests"`
	ActiveRequests    int `json:"active_requests"`
	CompletedRequests int `json:"completed_requests"`
	TotalAssignees    int `json:"total_assignees"`
	PendingResponses  int `json:"pending_responses"`
}

// ===== REPOSITORY INTERFACES =====

type RequestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.DataRequest, error)
	Update(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error

	List(ctx context.Context, tx *gorm.DB, filters RequestFilters) ([]*models.DataRequest, int64, error)
	// ListCandidatesForUser over-approximates visibility in SQL (creator,
	// assignee, or creator unit overlapping the viewer's units); the exact
	// decision stays with the hierarchy package in the service layer.
	ListCandidatesForUser(ctx context.Context, tx *gorm.DB, viewer *models.User, filters RequestFilters) ([]*models.DataRequest, error)

	IsCreator(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error)
	HasCompletedAssignees(ctx context.Context, tx *gorm.DB, requestID string) (bool, error)

	GetStats(ctx context.Context, tx *gorm.DB, id string) (*RequestStats, error)
	GetCreatorStats(ctx context.Context, tx *gorm.DB, creatorID string) (*CreatorStats, error)
}

type AssigneeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.RequestAssignee, error)
	GetByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (*models.RequestAssignee, error)
	ListByRequest(ctx context.Context, tx *gorm.DB, requestID string) ([]*models.RequestAssignee, error)
	ExistsByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error)

	// SaveResponses overwrites the assignee's field responses and updates
	// status/submittedAt in one write.
	SaveResponses(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.AssigneeStatus) error

	// ListOverduePending returns pending assignee rows whose parent request
	// is past its due date, for the overdue sweep.
	ListOverduePending(ctx context.Context, tx *gorm.DB) ([]*models.RequestAssignee, error)
}

// UserRepository provides read access to the user directory. The monitoring
// service is not the owner of account lifecycle (registration/approval lives
// with the identity collaborator).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}

type QueryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, query *models.Query) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Query, error)
	ListForUser(ctx context.Context, tx *gorm.DB, userID string, filters QueryFilters) ([]*models.Query, int64, error)
	AddResponse(ctx context.Context, tx *gorm.DB, response *models.QueryResponse) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.QueryStatus) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

type NotificationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
	CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*models.Notification) error
	ListForUser(ctx context.Context, tx *gorm.DB, userID string, filters NotificationFilters) ([]*models.Notification, int64, error)
	MarkRead(ctx context.Context, tx *gorm.DB, id, userID string) error
}
