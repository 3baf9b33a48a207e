package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taleemhub/monitoring-service/internal/hierarchy"
	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
)

type directoryService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewDirectoryService(repo repositories.Repository, logger *slog.Logger) DirectoryService {
	return &directoryService{
		repo:   repo,
		logger: logger,
	}
}

func (s *directoryService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *directoryService) List(ctx context.Context, filters repositories.UserFilters) (*UserListResponse, error) {
	users, total, err := s.repo.User().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	page, size := pageFromFilters(filters.Limit, filters.Offset)
	return &UserListResponse{
		Users: users,
		Total: total,
		Page:  page,
		Size:  size,
	}, nil
}

// EligibleAssignees narrows the directory to the users the requester may
// assign or delegate work to. The SQL pre-filter cuts the candidate set down
// by role and unit; the hierarchy filter makes the authoritative decision.
func (s *directoryService) EligibleAssignees(ctx context.Context, requesterID string, requestID *string) (*EligibleAssigneesResponse, error) {
	requester, err := s.repo.User().GetByID(ctx, requesterID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get requester: %w", err)
	}

	policy, ok := hierarchy.PolicyFor(requester.Role)
	if !ok || len(policy.ValidAssignees) == 0 {
		return &EligibleAssigneesResponse{Users: []*models.User{}}, nil
	}

	candidates, err := s.loadCandidates(ctx, requester, policy)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool)
	if requestID != nil {
		assignees, err := s.repo.Assignee().ListByRequest(ctx, nil, *requestID)
		if err != nil {
			return nil, fmt.Errorf("failed to list existing assignees: %w", err)
		}
		for _, a := range assignees {
			excluded[a.UserID] = true
		}
	}

	eligible := hierarchy.EligibleAssignees(requester, candidates, excluded)

	return &EligibleAssigneesResponse{
		Users: eligible,
		Total: len(eligible),
	}, nil
}

// loadCandidates fetches directory rows per valid-assignee role, scoped to the
// requester's own unit where the scope rule allows it. AEOs additionally see
// their explicitly assigned schools, which live outside their cluster, so
// their role queries stay unscoped and the hierarchy filter prunes the rest.
func (s *directoryService) loadCandidates(ctx context.Context, requester *models.User, policy hierarchy.RolePolicy) ([]*models.User, error) {
	var candidates []*models.User

	for _, role := range policy.ValidAssignees {
		filters := repositories.UserFilters{Role: &role}

		switch policy.Scope {
		case hierarchy.ScopeDistrict:
			filters.DistrictID = requester.DistrictID
		case hierarchy.ScopeSchool:
			filters.SchoolID = requester.SchoolID
		case hierarchy.ScopeCluster:
			// No SQL narrowing: assigned-school oversight crosses clusters.
		}

		users, _, err := s.repo.User().List(ctx, filters)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s candidates: %w", role, err)
		}
		candidates = append(candidates, users...)
	}

	return candidates, nil
}
