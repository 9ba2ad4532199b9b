package domain

import (
	"errors"
	"fmt"

	"staybook/internal/models"
)

const (
	ReasonInvalidRange      = "invalid_range"
	ReasonInvalidGuestCount = "invalid_guest_count"
	ReasonInvalidAmount     = "invalid_amount"
	ReasonInvalidStatus     = "invalid_status"
	ReasonInvalidDate       = "invalid_date"
	ReasonUnknownProperty   = "unknown_property"
	ReasonUnknownCustomer   = "unknown_customer"
)

const SyncTimeoutDetail = "timeout"

// ErrConcurrentModification means the stored row changed under the caller.
var ErrConcurrentModification = errors.New("booking was modified concurrently")

// ValidationError reports malformed input the caller can correct.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// ConflictError reports the active booking a new interval would overlap.
type ConflictError struct {
	ConflictingBookingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("interval conflicts with booking %s", e.ConflictingBookingID)
}

type InvalidTransitionError struct {
	From models.Status
	To   models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "booking"
	}
	return fmt.Sprintf("%s %s not found", kind, e.ID)
}

// SyncError is an external calendar failure. It is never returned from a
// booking mutation.
type SyncError struct {
	Detail string
}

func (e *SyncError) Error() string {
	return "calendar sync failed: " + e.Detail
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
