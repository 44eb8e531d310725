// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Reference errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrNegativeValue = errors.New("value cannot be negative")
	ErrValueTooLarge = errors.New("value out of range")

	// Claim outcomes
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotCompleted   = errors.New("objective not completed")
	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrExpired        = errors.New("expired")

	// Concurrency errors
	ErrStorageConflict = errors.New("storage conflict")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "quest", "reward"
	Op      string // Operation that failed, e.g., "RecordXP", "Claim"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Conflict wraps a storage error as a retryable StorageConflict.
func Conflict(op string, err error) *DomainError {
	return WrapError("storage", op, ErrStorageConflict, "concurrent write conflict", err)
}

// Ledger domain errors
var (
	ErrNegativeXP   = NewDomainError("ledger", "RecordXP", ErrNegativeValue, "xp amount cannot be negative")
	ErrXPTooLarge   = NewDomainError("ledger", "RecordXP", ErrValueTooLarge, "xp amount exceeds the per-event limit")
	ErrEmptyUserID  = NewDomainError("ledger", "Validate", ErrInvalidInput, "user id is required")
	ErrInvalidWeek  = NewDomainError("ledger", "Validate", ErrInvalidInput, "iso week must be between 1 and 53")
	ErrInvalidLimit = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "limit must be positive")
)

// Quest domain errors
var (
	ErrQuestNotFound           = NewDomainError("quest", "Find", ErrNotFound, "quest instance not found")
	ErrQuestDefinitionNotFound = NewDomainError("quest", "FindDefinition", ErrNotFound, "quest definition not found")
	ErrQuestNotOwned           = NewDomainError("quest", "Claim", ErrUnauthorized, "quest belongs to another user")
	ErrQuestNotCompleted       = NewDomainError("quest", "Claim", ErrNotCompleted, "quest is not completed")
	ErrQuestAlreadyClaimed     = NewDomainError("quest", "Claim", ErrAlreadyClaimed, "quest reward already claimed")
	ErrQuestExpired            = NewDomainError("quest", "Claim", ErrExpired, "quest has expired")
	ErrNegativeProgress        = NewDomainError("quest", "AddProgress", ErrNegativeValue, "progress amount cannot be negative")
	ErrInvalidAccuracy         = NewDomainError("quest", "Validate", ErrInvalidInput, "accuracy must be between 0 and 100")
	ErrInvalidQuestType        = NewDomainError("quest", "Validate", ErrInvalidInput, "unknown quest type")
	ErrInvalidTarget           = NewDomainError("quest", "Validate", ErrInvalidInput, "quest target must be positive")
)

// Challenge domain errors
var (
	ErrChallengeNotFound       = NewDomainError("challenge", "Find", ErrNotFound, "monthly challenge progress not found")
	ErrChallengeNotOwned       = NewDomainError("challenge", "Claim", ErrUnauthorized, "challenge progress belongs to another user")
	ErrChallengeNotCompleted   = NewDomainError("challenge", "Claim", ErrNotCompleted, "monthly challenge is not completed")
	ErrChallengeAlreadyClaimed = NewDomainError("challenge", "Claim", ErrAlreadyClaimed, "monthly challenge reward already claimed")
	ErrChallengeExpired        = NewDomainError("challenge", "Claim", ErrExpired, "monthly challenge window has closed")
)

// Streak domain errors
var (
	ErrStreakNotFound = NewDomainError("streak", "Find", ErrNotFound, "streak not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueTooLarge)
}

// IsStorageConflict checks if the operation hit a transient write conflict.
func IsStorageConflict(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}

// IsExpectedOutcome reports whether err is a normal result of user action
// (not completed, already claimed, expired, not owned) rather than a failure.
func IsExpectedOutcome(err error) bool {
	return errors.Is(err, ErrNotCompleted) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrUnauthorized)
}
