package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for common not-found / state conditions
var (
	ErrRequestNotFound      = errors.New("request not found")
	ErrAssigneeNotFound     = errors.New("assignee not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrQueryNotFound        = errors.New("query not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNoEligibleAssignees fires when a create or delegate names no user the
	// actor is allowed to assign to.
	ErrNoEligibleAssignees = errors.New("no eligible assignees in request")

	// ErrDuplicateRequest fires when an idempotency key has already been used.
	ErrDuplicateRequest = errors.New("request with this idempotency key was already accepted")
)

// PermissionError carries who tried what on which resource and why it was
// refused.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPermissionError reports whether err is (or wraps) a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// BusinessRuleError marks a request that is well-formed but violates a
// workflow rule.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func IsBusinessRuleError(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
