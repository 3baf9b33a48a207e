package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/taleemhub/monitoring-service/internal/events"
	"github.com/taleemhub/monitoring-service/internal/hierarchy"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

type requestService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	notifier  NotificationService
	publisher events.EventPublisher

	idempotency *idempotencyGuard
}

func NewRequestService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	notifier NotificationService,
	publisher events.EventPublisher,
	idempotency *idempotencyGuard,
) RequestService {
	return &requestService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		notifier:    notifier,
		publisher:   publisher,
		idempotency: idempotency,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *requestService) Create(ctx context.Context, req *CreateRequestRequest, creatorID string) (*RequestResponse, error) {
	s.logger.Info("Creating data request", "creator_id", creatorID, "title", req.Title)

	// Validate request with business rules
	if errors := s.validator.GetBusinessValidator().ValidateRequestCreate(req); len(errors) > 0 {
		return nil, errors
	}

	creator, err := s.repo.User().GetByID(ctx, creatorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}

	if !hierarchy.CanCreateRequests(creator.Role) {
		return nil, NewPermissionError(creatorID, "", "request", "create", "role cannot create requests")
	}

	// Claim the idempotency token before any write.
	if err := s.idempotency.Acquire(ctx, creatorID, req.IdempotencyKey); err != nil {
		return nil, err
	}

	assignees, err := s.resolveAssignees(ctx, creator, req.AssigneeIDs, nil)
	if err != nil {
		s.idempotency.Release(ctx, creatorID, req.IdempotencyKey)
		return nil, err
	}

	request := &models.DataRequest{
		Title:             req.Title,
		Description:       req.Description,
		VoiceNoteURL:      req.VoiceNoteURL,
		VoiceNoteName:     req.VoiceNoteName,
		CreatedBy:         creator.ID,
		CreatorName:       creator.FullName,
		CreatorRole:       creator.Role,
		CreatorSchoolID:   creator.SchoolID,
		CreatorClusterID:  creator.ClusterID,
		CreatorDistrictID: creator.DistrictID,
		DueDate:           req.DueDate,
		Priority:          req.Priority,
		Status:            models.RequestActive,
	}
	if request.Priority == "" {
		request.Priority = models.PriorityMedium
	}

	for i, f := range req.Fields {
		request.Fields = append(request.Fields, models.RequestField{
			Name:     f.Name,
			Type:     f.Type,
			Required: f.Required,
			Position: i,
		})
	}

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Request().Create(ctx, tx, request); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		for _, user := range assignees {
			assignee := &models.RequestAssignee{
				RequestID:  request.ID,
				UserID:     user.ID,
				UserName:   user.FullName,
				UserRole:   user.Role,
				SchoolID:   user.SchoolID,
				SchoolName: user.SchoolName,
				Status:     models.AssigneePending,
			}
			if err := s.repo.Assignee().Create(ctx, tx, assignee); err != nil {
				return fmt.Errorf("failed to create assignee %s: %w", user.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		s.idempotency.Release(ctx, creatorID, req.IdempotencyKey)
		return nil, err
	}

	s.logger.Info("Data request created", "request_id", request.ID, "assignees", len(assignees))

	s.publishLifecycleEvent(ctx, events.EventRequestCreated, request, creator, userIDs(assignees))
	s.notifyUsers(ctx, userIDs(assignees), &NotificationRequest{
		Type:      models.NotificationRequestAssigned,
		Title:     "New data request",
		Message:   fmt.Sprintf("%s assigned you: %s", creator.FullName, request.Title),
		Priority:  notifyPriorityFor(request.Priority),
		RequestID: &request.ID,
	})

	return s.GetByID(ctx, request.ID, creatorID)
}

func (s *requestService) GetByID(ctx context.Context, id string, userID string) (*RequestResponse, error) {
	viewer, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	request, err := s.repo.Request().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if !hierarchy.CanView(viewer, request, assigneeUserIDs(request)) {
		return nil, NewPermissionError(userID, id, "request", "read", "outside viewer's visibility scope")
	}

	return s.buildRequestResponse(viewer, request), nil
}

func (s *requestService) Update(ctx context.Context, id string, req *UpdateRequestRequest, userID string) (*RequestResponse, error) {
	s.logger.Info("Updating data request", "request_id", id, "user_id", userID)

	request, err := s.repo.Request().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if errors := s.validator.GetBusinessValidator().ValidateRequestUpdate(req, request); len(errors) > 0 {
		return nil, errors
	}

	if request.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "request", "update", "only the creator may update a request")
	}

	s.applyRequestUpdates(request, req)

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Request().Update(ctx, tx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	s.logger.Info("Data request updated", "request_id", id)

	return s.GetByID(ctx, id, userID)
}

func (s *requestService) Delete(ctx context.Context, id string, userID string) error {
	s.logger.Info("Deleting data request", "request_id", id, "user_id", userID)

	isCreator, err := s.repo.Request().IsCreator(ctx, s.db, id, userID)
	if err != nil {
		return fmt.Errorf("failed to check creator: %w", err)
	}
	if !isCreator {
		exists, err := s.requestExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrRequestNotFound
		}
		return NewPermissionError(userID, id, "request", "delete", "only the creator may delete a request")
	}

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Request().Delete(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}

	s.logger.Info("Data request deleted", "request_id", id)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *requestService) List(ctx context.Context, filters repositories.RequestFilters, userID string) (*RequestListResponse, error) {
	viewer, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	candidates, err := s.repo.Request().ListCandidatesForUser(ctx, s.db, viewer, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	// The SQL query over-approximates; the hierarchy rule makes the final call.
	responses := make([]*RequestResponse, 0, len(candidates))
	for _, request := range candidates {
		if !hierarchy.CanView(viewer, request, assigneeUserIDs(request)) {
			continue
		}
		responses = append(responses, s.buildRequestResponse(viewer, request))
	}

	page, size := pageFromFilters(filters.Limit, filters.Offset)
	return &RequestListResponse{
		Requests: responses,
		Total:    len(responses),
		Page:     page,
		Size:     size,
	}, nil
}

// ===== RESPONSE WORKFLOW =====

func (s *requestService) SubmitResponses(ctx context.Context, requestID string, req *SubmitResponsesRequest, userID string) (*RequestResponse, error) {
	s.logger.Info("Submitting responses", "request_id", requestID, "user_id", userID)

	request, err := s.repo.Request().GetByID(ctx, s.db, requestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if errors := s.validator.GetBusinessValidator().ValidateSubmit(request.Fields, req); len(errors) > 0 {
		return nil, errors
	}

	// The caller must be an assignee; nobody submits on another's behalf.
	assignee, err := s.repo.Assignee().GetByRequestAndUser(ctx, s.db, requestID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewPermissionError(userID, requestID, "request", "submit", "not an assignee of this request")
		}
		return nil, fmt.Errorf("failed to get assignee: %w", err)
	}

	now := time.Now()
	assignee.Status = models.AssigneeCompleted
	assignee.SubmittedAt = &now
	assignee.UpdatedAt = now
	assignee.Responses = assignee.Responses[:0]
	for _, r := range req.Responses {
		assignee.Responses = append(assignee.Responses, models.FieldResponse{
			AssigneeID: assignee.ID,
			FieldID:    r.FieldID,
			Value:      r.Value,
			FileURL:    r.FileURL,
			FileName:   r.FileName,
		})
	}

	wasCompleted := request.Status == models.RequestCompleted
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Assignee().SaveResponses(ctx, tx, assignee); err != nil {
			return err
		}
		return s.reconcileRequestStatus(ctx, tx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save responses: %w", err)
	}

	s.logger.Info("Responses submitted", "request_id", requestID, "assignee_id", assignee.ID)

	s.publishLifecycleEvent(ctx, events.EventRequestSubmitted, request, nil, []string{userID})
	if !wasCompleted && request.Status == models.RequestCompleted {
		s.publishLifecycleEvent(ctx, events.EventRequestCompleted, request, nil, assigneeUserIDs(request))
	}
	s.notifyUsers(ctx, []string{request.CreatedBy}, &NotificationRequest{
		Type:      models.NotificationRequestSubmitted,
		Title:     "Response submitted",
		Message:   fmt.Sprintf("%s submitted a response to: %s", assignee.UserName, request.Title),
		Priority:  models.NotifyPriorityNormal,
		RequestID: &request.ID,
	})

	return s.GetByID(ctx, requestID, userID)
}

func (s *requestService) Delegate(ctx context.Context, requestID string, req *DelegateRequest, delegatorID string) (*RequestResponse, error) {
	s.logger.Info("Delegating data request", "request_id", requestID, "delegator_id", delegatorID)

	if errors := s.validator.GetBusinessValidator().ValidateDelegate(req); len(errors) > 0 {
		return nil, errors
	}

	delegator, err := s.repo.User().GetByID(ctx, delegatorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get delegator: %w", err)
	}

	request, err := s.repo.Request().GetByID(ctx, s.db, requestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	// Delegation is for assignees with a delegation-capable role, not for
	// arbitrary viewers or even the creator.
	if !isAssignee(request, delegatorID) {
		return nil, NewPermissionError(delegatorID, requestID, "request", "delegate", "not an assignee of this request")
	}
	if !hierarchy.CanDelegate(delegator.Role) {
		return nil, NewPermissionError(delegatorID, requestID, "request", "delegate", "role cannot delegate")
	}

	excluded := make(map[string]bool, len(request.Assignees))
	for _, a := range request.Assignees {
		excluded[a.UserID] = true
	}

	targets, err := s.resolveAssignees(ctx, delegator, req.AssigneeIDs, excluded)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		for _, user := range targets {
			// New rows inherit the request's field template implicitly:
			// responses correlate to the shared request_fields rows by ID.
			assignee := &models.RequestAssignee{
				RequestID:   request.ID,
				UserID:      user.ID,
				UserName:    user.FullName,
				UserRole:    user.Role,
				SchoolID:    user.SchoolID,
				SchoolName:  user.SchoolName,
				Status:      models.AssigneePending,
				DelegatedBy: &delegator.ID,
			}
			if err := s.repo.Assignee().Create(ctx, tx, assignee); err != nil {
				return fmt.Errorf("failed to create delegated assignee %s: %w", user.ID, err)
			}
		}

		// A completed request reopens when new pending assignees arrive.
		if request.Status == models.RequestCompleted {
			request.Status = models.RequestActive
			request.UpdatedAt = time.Now()
			return s.repo.Request().Update(ctx, tx, request)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request delegated", "request_id", requestID, "new_assignees", len(targets))

	s.publishLifecycleEvent(ctx, events.EventRequestDelegated, request, delegator, userIDs(targets))
	s.notifyUsers(ctx, userIDs(targets), &NotificationRequest{
		Type:      models.NotificationRequestDelegated,
		Title:     "Request delegated to you",
		Message:   fmt.Sprintf("%s delegated to you: %s", delegator.FullName, request.Title),
		Priority:  notifyPriorityFor(request.Priority),
		RequestID: &request.ID,
	})

	return s.GetByID(ctx, requestID, delegatorID)
}

// ===== STATISTICS =====

func (s *requestService) GetStats(ctx context.Context, id string, userID string) (*repositories.RequestStats, error) {
	// Stats follow the same visibility rule as the request itself.
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}

	return s.repo.Request().GetStats(ctx, s.db, id)
}

func (s *requestService) GetCreatorStats(ctx context.Context, creatorID string) (*repositories.CreatorStats, error) {
	return s.repo.Request().GetCreatorStats(ctx, s.db, creatorID)
}

// MarkOverdueRequests is run by the cron scheduler.
func (s *requestService) MarkOverdueRequests(ctx context.Context) (int, error) {
	overdue, err := s.repo.Assignee().ListOverduePending(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue assignees: %w", err)
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		for _, a := range overdue {
			if err := s.repo.Assignee().UpdateStatus(ctx, tx, a.ID, models.AssigneeOverdue); err != nil {
				return fmt.Errorf("failed to mark assignee %s overdue: %w", a.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Marked assignees overdue", "count", len(overdue))

	byRequest := make(map[string][]string)
	for _, a := range overdue {
		byRequest[a.RequestID] = append(byRequest[a.RequestID], a.UserID)
	}

	for requestID, users := range byRequest {
		request, err := s.repo.Request().GetByID(ctx, s.db, requestID)
		if err != nil {
			s.logger.Error("Failed to load overdue request", "request_id", requestID, "error", err)
			continue
		}

		s.publishLifecycleEvent(ctx, events.EventRequestOverdue, request, nil, users)
		s.notifyUsers(ctx, users, &NotificationRequest{
			Type:      models.NotificationRequestOverdue,
			Title:     "Request overdue",
			Message:   fmt.Sprintf("The due date has passed for: %s", request.Title),
			Priority:  models.NotifyPriorityHigh,
			RequestID: &request.ID,
		})
	}

	return len(overdue), nil
}

// ===== PERMISSION CHECKS =====

func (s *requestService) CanEdit(ctx context.Context, requestID string, userID string) (bool, error) {
	return s.repo.Request().IsCreator(ctx, s.db, requestID, userID)
}

func (s *requestService) CanDelete(ctx context.Context, requestID string, userID string) (bool, error) {
	return s.repo.Request().IsCreator(ctx, s.db, requestID, userID)
}

func (s *requestService) CanDelegate(ctx context.Context, requestID string, userID string) (bool, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !hierarchy.CanDelegate(user.Role) {
		return false, nil
	}

	return s.repo.Assignee().ExistsByRequestAndUser(ctx, s.db, requestID, userID)
}

// ===== HELPERS =====

func (s *requestService) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return fn(nil)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// resolveAssignees loads the requested users and checks every one against the
// hierarchy: unknown IDs and out-of-scope targets reject the whole call, so a
// fan-out is all-or-nothing. Duplicate input IDs collapse silently.
func (s *requestService) resolveAssignees(ctx context.Context, requester *models.User, requestedIDs []string, excluded map[string]bool) ([]*models.User, error) {
	unique := make([]string, 0, len(requestedIDs))
	seen := make(map[string]bool, len(requestedIDs))
	for _, id := range requestedIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	candidates, err := s.repo.User().GetByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignees: %w", err)
	}

	byID := make(map[string]*models.User, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	for _, id := range unique {
		if byID[id] == nil {
			return nil, NewBusinessRuleError("unknown_assignee", fmt.Sprintf("user %s does not exist", id))
		}
	}

	eligible := hierarchy.EligibleAssignees(requester, candidates, excluded)
	eligibleSet := make(map[string]bool, len(eligible))
	for _, u := range eligible {
		eligibleSet[u.ID] = true
	}
	for _, id := range unique {
		if !eligibleSet[id] {
			if excluded[id] {
				return nil, NewBusinessRuleError("duplicate_assignee", fmt.Sprintf("user %s is already assigned", id))
			}
			return nil, NewPermissionError(requester.ID, id, "user", "assign", "target outside requester's role or unit scope")
		}
	}

	if len(eligible) == 0 {
		return nil, ErrNoEligibleAssignees
	}
	return eligible, nil
}

// reconcileRequestStatus flips the parent request to completed once every
// assignee row has submitted.
func (s *requestService) reconcileRequestStatus(ctx context.Context, tx *gorm.DB, request *models.DataRequest) error {
	assignees, err := s.repo.Assignee().ListByRequest(ctx, tx, request.ID)
	if err != nil {
		return fmt.Errorf("failed to list assignees: %w", err)
	}

	allCompleted := len(assignees) > 0
	for _, a := range assignees {
		if a.Status != models.AssigneeCompleted {
			allCompleted = false
			break
		}
	}

	if allCompleted && request.Status != models.RequestCompleted {
		request.Status = models.RequestCompleted
		request.UpdatedAt = time.Now()
		return s.repo.Request().Update(ctx, tx, request)
	}
	return nil
}

func (s *requestService) requestExists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.Request().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get request: %w", err)
	}
	return true, nil
}

func (s *requestService) buildRequestResponse(viewer *models.User, request *models.DataRequest) *RequestResponse {
	isCreator := viewer.ID == request.CreatedBy

	var mine *models.RequestAssignee
	for i := range request.Assignees {
		if request.Assignees[i].UserID == viewer.ID {
			mine = &request.Assignees[i]
			break
		}
	}

	return &RequestResponse{
		DataRequest: request,
		CanEdit:     isCreator,
		CanDelete:   isCreator,
		CanDelegate: mine != nil && hierarchy.CanDelegate(viewer.Role),
		CanSubmit:   mine != nil,
		MyAssignee:  mine,
	}
}

func (s *requestService) publishLifecycleEvent(ctx context.Context, eventType string, request *models.DataRequest, actor *models.User, targetIDs []string) {
	payload := events.RequestLifecycleEvent{
		RequestID:   request.ID,
		Title:       request.Title,
		AssigneeIDs: targetIDs,
	}
	if actor != nil {
		payload.ActorID = actor.ID
		payload.ActorName = actor.FullName
	}

	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Error("Failed to publish event", "event_type", eventType, "request_id", request.ID, "error", err)
	}
}

func (s *requestService) notifyUsers(ctx context.Context, ids []string, notification *NotificationRequest) {
	if len(ids) == 0 {
		return
	}
	if err := s.notifier.SendBulkNotification(ctx, ids, notification); err != nil {
		s.logger.Error("Failed to send notifications", "type", notification.Type, "error", err)
	}
}

func isAssignee(request *models.DataRequest, userID string) bool {
	for _, a := range request.Assignees {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

func assigneeUserIDs(request *models.DataRequest) []string {
	ids := make([]string, 0, len(request.Assignees))
	for _, a := range request.Assignees {
		ids = append(ids, a.UserID)
	}
	return ids
}

func userIDs(users []*models.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func notifyPriorityFor(p models.RequestPriority) models.NotificationPriority {
	if p == models.PriorityHigh || p == models.PriorityUrgent {
		return models.NotifyPriorityHigh
	}
	return models.NotifyPriorityNormal
}

func pageFromFilters(limit, offset int) (page, size int) {
	size = limit
	if size <= 0 {
		size = 20
	}
	page = offset/size + 1
	return page, size
}
