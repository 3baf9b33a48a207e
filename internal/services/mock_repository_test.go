package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
)

// mockRepository is an in-memory Repository for service tests. Sub-repos share
// the same backing maps so fan-out rows written through Assignee() show up on
// requests read through Request().
type mockRepository struct {
	mu sync.Mutex

	users         map[string]*models.User
	requests      map[string]*models.DataRequest
	assignees     map[string]*models.RequestAssignee
	queries       map[string]*models.Query
	notifications []*models.Notification
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:     make(map[string]*models.User),
		requests:  make(map[string]*models.DataRequest),
		assignees: make(map[string]*models.RequestAssignee),
		queries:   make(map[string]*models.Query),
	}
}

func (m *mockRepository) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = u
	return u
}

func (m *mockRepository) Request() repositories.RequestRepository   { return (*mockRequestRepo)(m) }
func (m *mockRepository) Assignee() repositories.AssigneeRepository { return (*mockAssigneeRepo)(m) }
func (m *mockRepository) User() repositories.UserRepository         { return (*mockUserRepo)(m) }
func (m *mockRepository) Query() repositories.QueryRepository       { return (*mockQueryRepo)(m) }
func (m *mockRepository) Notification() repositories.NotificationRepository {
	return (*mockNotificationRepo)(m)
}

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}
func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// requestAssignees collects the live assignee rows for a request, oldest
// first, mirroring the SQL ordering.
func (m *mockRepository) requestAssignees(requestID string) []models.RequestAssignee {
	rows := make([]*models.RequestAssignee, 0)
	for _, a := range m.assignees {
		if a.RequestID == requestID {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })

	out := make([]models.RequestAssignee, 0, len(rows))
	for _, a := range rows {
		out = append(out, *a)
	}
	return out
}

// ===== REQUESTS =====

type mockRequestRepo mockRepository

func (m *mockRequestRepo) Create(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	for i := range request.Fields {
		if request.Fields[i].ID == "" {
			request.Fields[i].ID = uuid.NewString()
		}
		request.Fields[i].RequestID = request.ID
	}
	request.CreatedAt = time.Now()
	m.requests[request.ID] = request
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.DataRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *request
	copied.Assignees = (*mockRepository)(m).requestAssignees(id)
	copied.AssigneeCount = len(copied.Assignees)
	for _, a := range copied.Assignees {
		if a.Status == models.AssigneeCompleted {
			copied.CompletedCount++
		}
	}
	return &copied, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[request.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *request
	stored.Assignees = nil
	m.requests[request.ID] = &stored
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.requests, id)
	for aid, a := range m.assignees {
		if a.RequestID == id {
			delete(m.assignees, aid)
		}
	}
	return nil
}

func (m *mockRequestRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.RequestFilters) ([]*models.DataRequest, int64, error) {
	all, err := m.ListCandidatesForUser(ctx, tx, nil, filters)
	return all, int64(len(all)), err
}

// ListCandidatesForUser deliberately over-approximates, like the SQL pre-filter
// it stands in for: the service's hierarchy check must prune the rest.
func (m *mockRequestRepo) ListCandidatesForUser(ctx context.Context, tx *gorm.DB, viewer *models.User, filters repositories.RequestFilters) ([]*models.DataRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.DataRequest, 0, len(m.requests))
	for id, request := range m.requests {
		if filters.Status != nil && request.Status != *filters.Status {
			continue
		}
		copied := *request
		copied.Assignees = (*mockRepository)(m).requestAssignees(id)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRequestRepo) IsCreator(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	return ok && request.CreatedBy == userID, nil
}

func (m *mockRequestRepo) HasCompletedAssignees(ctx context.Context, tx *gorm.DB, requestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignees {
		if a.RequestID == requestID && a.Status == models.AssigneeCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) GetStats(ctx context.Context, tx *gorm.DB, id string) (*repositories.RequestStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repositories.RequestStats{}
	for _, a := range m.assignees {
		if a.RequestID != id {
			continue
		}
		stats.TotalAssignees++
		switch a.Status {
		case models.AssigneeCompleted:
			stats.CompletedAssignees++
		case models.AssigneeOverdue:
			stats.OverdueAssignees++
		default:
			stats.PendingAssignees++
		}
	}
	if stats.TotalAssignees > 0 {
		stats.CompletionRate = float64(stats.CompletedAssignees) / float64(stats.TotalAssignees) * 100
	}
	return stats, nil
}

func (m *mockRequestRepo) GetCreatorStats(ctx context.Context, tx *gorm.DB, creatorID string) (*repositories.CreatorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repositories.CreatorStats{}
	for id, request := range m.requests {
		if request.CreatedBy != creatorID {
			continue
		}
		stats.TotalRequests++
		switch request.Status {
		case models.RequestActive:
			stats.ActiveRequests++
		case models.RequestCompleted:
			stats.CompletedRequests++
		}
		for _, a := range m.assignees {
			if a.RequestID == id {
				stats.TotalAssignees++
				if a.Status != models.AssigneeCompleted {
					stats.PendingResponses++
				}
			}
		}
	}
	return stats, nil
}

// ===== ASSIGNEES =====

type mockAssigneeRepo mockRepository

func (m *mockAssigneeRepo) Create(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignees {
		if a.RequestID == assignee.RequestID && a.UserID == assignee.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	if assignee.ID == "" {
		assignee.ID = uuid.NewString()
	}
	assignee.CreatedAt = time.Now()
	m.assignees[assignee.ID] = assignee
	return nil
}

func (m *mockAssigneeRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.RequestAssignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assignee, ok := m.assignees[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *assignee
	return &copied, nil
}

func (m *mockAssigneeRepo) GetByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (*models.RequestAssignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignees {
		if a.RequestID == requestID && a.UserID == userID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssigneeRepo) ListByRequest(ctx context.Context, tx *gorm.DB, requestID string) ([]*models.RequestAssignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := (*mockRepository)(m).requestAssignees(requestID)
	out := make([]*models.RequestAssignee, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (m *mockAssigneeRepo) ExistsByRequestAndUser(ctx context.Context, tx *gorm.DB, requestID, userID string) (bool, error) {
	_, err := m.GetByRequestAndUser(ctx, tx, requestID, userID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (m *mockAssigneeRepo) SaveResponses(ctx context.Context, tx *gorm.DB, assignee *models.RequestAssignee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.assignees[assignee.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Responses = make([]models.FieldResponse, len(assignee.Responses))
	copy(stored.Responses, assignee.Responses)
	stored.Status = assignee.Status
	stored.SubmittedAt = assignee.SubmittedAt
	stored.UpdatedAt = assignee.UpdatedAt
	return nil
}

func (m *mockAssigneeRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.AssigneeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	assignee, ok := m.assignees[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	assignee.Status = status
	assignee.UpdatedAt = time.Now()
	return nil
}

func (m *mockAssigneeRepo) ListOverduePending(ctx context.Context, tx *gorm.DB) ([]*models.RequestAssignee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var overdue []*models.RequestAssignee
	for _, a := range m.assignees {
		request, ok := m.requests[a.RequestID]
		if !ok || request.DueDate == nil || request.DueDate.After(now) {
			continue
		}
		if a.Status == models.AssigneePending {
			copied := *a
			overdue = append(overdue, &copied)
		}
	}
	return overdue, nil
}

// ===== USERS =====

type mockUserRepo mockRepository

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		if filters.Role != nil && u.Role != *filters.Role {
			continue
		}
		if filters.DistrictID != nil && (u.DistrictID == nil || *u.DistrictID != *filters.DistrictID) {
			continue
		}
		if filters.ClusterID != nil && (u.ClusterID == nil || *u.ClusterID != *filters.ClusterID) {
			continue
		}
		if filters.SchoolID != nil && (u.SchoolID == nil || *u.SchoolID != *filters.SchoolID) {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(u.FullName), strings.ToLower(filters.Query)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, int64(len(out)), nil
}

func (m *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return ok && user.Role == role, nil
}

// ===== QUERIES =====

type mockQueryRepo mockRepository

func (m *mockQueryRepo) Create(ctx context.Context, tx *gorm.DB, query *models.Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	query.CreatedAt = time.Now()
	m.queries[query.ID] = query
	return nil
}

func (m *mockQueryRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	query, ok := m.queries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *query
	return &copied, nil
}

func (m *mockQueryRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.QueryFilters) ([]*models.Query, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Query, 0)
	for _, q := range m.queries {
		if q.FromUserID != userID && q.ToUserID != userID {
			continue
		}
		if filters.Status != nil && q.Status != *filters.Status {
			continue
		}
		out = append(out, q)
	}
	return out, int64(len(out)), nil
}

func (m *mockQueryRepo) AddResponse(ctx context.Context, tx *gorm.DB, response *models.QueryResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	query, ok := m.queries[response.QueryID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	query.Responses = append(query.Responses, *response)
	return nil
}

func (m *mockQueryRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id string, status models.QueryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	query, ok := m.queries[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	query.Status = status
	return nil
}

func (m *mockQueryRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queries[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.queries, id)
	return nil
}

// ===== NOTIFICATIONS =====

type mockNotificationRepo mockRepository

func (m *mockNotificationRepo) Create(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	return m.CreateBatch(ctx, tx, []*models.Notification{notification})
}

func (m *mockNotificationRepo) CreateBatch(ctx context.Context, tx *gorm.DB, notifications []*models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range notifications {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		m.notifications = append(m.notifications, n)
	}
	return nil
}

func (m *mockNotificationRepo) ListForUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if filters.Unread != nil && n.Read == *filters.Unread {
			continue
		}
		out = append(out, n)
	}
	return out, int64(len(out)), nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, tx *gorm.DB, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			now := time.Now()
			n.ReadAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
