package service

import (
	"staybook/internal/availability"
	"staybook/internal/domain"
	"staybook/internal/models"
)

// Validate checks a proposed interval for a property. The checker must be the
// caller's held Tx when the result guards a write.
func Validate(checker availability.ConflictChecker, propertyID string, interval models.Interval, guestCount int, excludeID string) error {
	if err := validateShape(interval, guestCount); err != nil {
		return err
	}
	if id, found := checker.Conflict(propertyID, interval, excludeID); found {
		return &domain.ConflictError{ConflictingBookingID: id}
	}
	return nil
}

// ValidateAmounts rejects negative money fields. Paid above total is allowed.
func ValidateAmounts(total, paid float64) error {
	if total < 0 || paid < 0 {
		return domain.NewValidationError(domain.ReasonInvalidAmount)
	}
	return nil
}

func validateShape(interval models.Interval, guestCount int) error {
	if !interval.Valid() {
		return domain.NewValidationError(domain.ReasonInvalidRange)
	}
	if guestCount < 1 {
		return domain.NewValidationError(domain.ReasonInvalidGuestCount)
	}
	return nil
}
