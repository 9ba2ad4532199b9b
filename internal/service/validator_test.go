package service

import (
	"testing"

	"staybook/internal/availability"
	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	idx := availability.NewIndex()
	require.NoError(t, idx.Insert("villa", "b1", models.NewInterval(day("2025-06-01"), day("2025-06-05"))))

	tests := []struct {
		name     string
		interval models.Interval
		guests   int
		exclude  string
		reason   string
		conflict string
	}{
		{name: "Free", interval: models.NewInterval(day("2025-06-05"), day("2025-06-07")), guests: 1},
		{name: "Empty", interval: models.NewInterval(day("2025-06-07"), day("2025-06-07")), guests: 1, reason: domain.ReasonInvalidRange},
		{name: "NoGuests", interval: models.NewInterval(day("2025-06-07"), day("2025-06-08")), guests: 0, reason: domain.ReasonInvalidGuestCount},
		{name: "Overlap", interval: models.NewInterval(day("2025-05-30"), day("2025-06-02")), guests: 2, conflict: "b1"},
		{name: "OverlapSelf", interval: models.NewInterval(day("2025-05-30"), day("2025-06-02")), guests: 2, exclude: "b1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(idx, "villa", tt.interval, tt.guests, tt.exclude)
			switch {
			case tt.reason != "":
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.reason, verr.Reason)
			case tt.conflict != "":
				var cerr *domain.ConflictError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, tt.conflict, cerr.ConflictingBookingID)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAmounts(t *testing.T) {
	assert.NoError(t, ValidateAmounts(100, 150))
	assert.NoError(t, ValidateAmounts(0, 0))
	assert.True(t, domain.IsValidation(ValidateAmounts(-1, 0)))
	assert.True(t, domain.IsValidation(ValidateAmounts(10, -0.5)))
}
