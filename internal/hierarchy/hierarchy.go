// Package hierarchy is the single source of truth for the organizational role
// hierarchy: role ranks, which roles each role may assign work to, and how
// organizational units scope assignment and visibility. Both the server-side
// list filtering and the client-side offline fallback consult this package, so
// online and degraded modes cannot diverge.
package hierarchy

import (
	"github.com/taleemhub/monitoring-service/internal/models"
)

// ScopeRule names the organizational-unit dimension a role is confined to
// when assigning work or viewing requests.
type ScopeRule int

const (
	// ScopeNone imposes no unit restriction (CEO).
	ScopeNone ScopeRule = iota
	// ScopeDistrict requires a shared district (DEO, DDEO, TRAINING_MANAGER).
	ScopeDistrict
	// ScopeCluster requires a shared cluster, or for assignment an explicitly
	// assigned school (AEO).
	ScopeCluster
	// ScopeSchool requires a shared school (HEAD_TEACHER).
	ScopeSchool
)

// RolePolicy is one row of the static hierarchy table.
type RolePolicy struct {
	// Rank orders roles by authority; lower number means more senior.
	// CEO is rank 1.
	Rank int
	// ValidAssignees lists the roles this role may assign or delegate work
	// to. Empty means the role cannot create or delegate requests.
	ValidAssignees []models.UserRole
	// Scope restricts assignment and visibility to an organizational unit.
	Scope ScopeRule
}

// policies is immutable configuration; never mutated at runtime.
var policies = map[models.UserRole]RolePolicy{
	models.RoleCEO: {
		Rank:  1,
		Scope: ScopeNone,
		ValidAssignees: []models.UserRole{
			models.RoleDEO, models.RoleDDEO, models.RoleAEO,
			models.RoleHeadTeacher, models.RoleTeacher,
			models.RoleCoach, models.RoleTrainingManager,
		},
	},
	models.RoleDEO: {
		Rank:  2,
		Scope: ScopeDistrict,
		ValidAssignees: []models.UserRole{
			models.RoleDDEO, models.RoleAEO, models.RoleHeadTeacher, models.RoleTeacher,
		},
	},
	models.RoleDDEO: {
		Rank:  3,
		Scope: ScopeDistrict,
		ValidAssignees: []models.UserRole{
			models.RoleAEO, models.RoleHeadTeacher, models.RoleTeacher,
		},
	},
	models.RoleAEO: {
		Rank:  4,
		Scope: ScopeCluster,
		ValidAssignees: []models.UserRole{
			models.RoleHeadTeacher, models.RoleTeacher, models.RoleCoach,
		},
	},
	models.RoleHeadTeacher: {
		Rank:  5,
		Scope: ScopeSchool,
		ValidAssignees: []models.UserRole{
			models.RoleTeacher,
		},
	},
	models.RoleTrainingManager: {
		Rank:  5,
		Scope: ScopeDistrict,
		ValidAssignees: []models.UserRole{
			models.RoleCoach,
		},
	},
	models.RoleTeacher: {Rank: 6, Scope: ScopeSchool},
	models.RoleCoach:   {Rank: 7, Scope: ScopeCluster},
}

// delegationCapable is the set of roles allowed to re-delegate a request they
// are assigned to.
var delegationCapable = map[models.UserRole]bool{
	models.RoleAEO:         true,
	models.RoleHeadTeacher: true,
	models.RoleDEO:         true,
	models.RoleDDEO:        true,
}

// PolicyFor returns the hierarchy row for a role. Unknown roles get a
// zero policy: rank 0, no assignees, no scope.
func PolicyFor(role models.UserRole) (RolePolicy, bool) {
	p, ok := policies[role]
	return p, ok
}

// Rank returns the authority rank for a role (lower = more senior), or 0 for
// unknown roles.
func Rank(role models.UserRole) int {
	return policies[role].Rank
}

// CanAssign reports whether role may assign work to target per the static
// valid-assignee sets, ignoring unit scoping.
func CanAssign(role, target models.UserRole) bool {
	for _, r := range policies[role].ValidAssignees {
		if r == target {
			return true
		}
	}
	return false
}

// CanDelegate reports whether a role belongs to the delegation-capable set.
func CanDelegate(role models.UserRole) bool {
	return delegationCapable[role]
}

// CanCreateRequests reports whether a role has any valid assignees at all.
func CanCreateRequests(role models.UserRole) bool {
	return len(policies[role].ValidAssignees) > 0
}

func strEq(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

// inAssignedSchools reports whether the candidate's school name appears in
// the requester's explicitly assigned school list.
func inAssignedSchools(requester, candidate *models.User) bool {
	if candidate.SchoolName == nil {
		return false
	}
	for _, name := range requester.AssignedSchools {
		if name != "" && name == *candidate.SchoolName {
			return true
		}
	}
	return false
}

// unitMatches applies the requester's scope rule to a candidate.
func unitMatches(requester, candidate *models.User) bool {
	switch policies[requester.Role].Scope {
	case ScopeNone:
		return true
	case ScopeDistrict:
		return strEq(requester.DistrictID, candidate.DistrictID)
	case ScopeCluster:
		return strEq(requester.ClusterID, candidate.ClusterID) || inAssignedSchools(requester, candidate)
	case ScopeSchool:
		return strEq(requester.SchoolID, candidate.SchoolID)
	}
	return false
}

// EligibleAssignees filters candidates down to valid assignment/delegation
// targets for the requester: role must be in the requester's valid-assignee
// set, organizational unit must match the requester's scope rule, the
// requester is never a target of their own request, and anyone already
// assigned (excluded set, keyed by user ID) is skipped.
//
// The filter is pure: same inputs, same output, no hidden state.
func EligibleAssignees(requester *models.User, candidates []*models.User, excluded map[string]bool) []*models.User {
	eligible := make([]*models.User, 0, len(candidates))
	if requester == nil || !CanCreateRequests(requester.Role) {
		return eligible
	}
	for _, c := range candidates {
		if c == nil || c.ID == requester.ID {
			continue
		}
		if excluded[c.ID] {
			continue
		}
		if !CanAssign(requester.Role, c.Role) {
			continue
		}
		if !unitMatches(requester, c) {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// CanView decides whether a viewer may see a request. A viewer sees a request
// if they created it, they are an assignee on it, or they outrank the creator
// and share the creator's organizational unit per the viewer's own scope
// rule. This is the one visibility rule used by both the server list query
// and the client offline fallback.
func CanView(viewer *models.User, req *models.DataRequest, assigneeIDs []string) bool {
	if viewer == nil || req == nil {
		return false
	}
	if viewer.ID == req.CreatedBy {
		return true
	}
	for _, id := range assigneeIDs {
		if id == viewer.ID {
			return true
		}
	}

	viewerRank := Rank(viewer.Role)
	creatorRank := Rank(req.CreatorRole)
	if viewerRank == 0 || creatorRank == 0 || viewerRank >= creatorRank {
		return false
	}

	switch policies[viewer.Role].Scope {
	case ScopeNone:
		return true
	case ScopeDistrict:
		return strEq(viewer.DistrictID, req.CreatorDistrictID)
	case ScopeCluster:
		return strEq(viewer.ClusterID, req.CreatorClusterID)
	case ScopeSchool:
		return strEq(viewer.SchoolID, req.CreatorSchoolID)
	}
	return false
}
