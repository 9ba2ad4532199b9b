package api

import (
	"context"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
)

// createIdempotent creates a booking, or returns the booking an earlier request
// with the same key produced. The bool is true for a replay. Idempotency store
// failures degrade to a plain create.
func createIdempotent(
	ctx context.Context,
	svc domain.BookingService,
	store domain.IdempotencyStore,
	key string,
	in models.CreateBookingInput,
) (*models.Booking, bool, error) {
	if key == "" || store == nil {
		b, err := svc.CreateBooking(ctx, in)
		return b, false, err
	}
	logger := zerolog.Ctx(ctx)

	bookingID, ok, err := store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
	case ok:
		b, err := svc.GetBooking(ctx, bookingID)
		if err == nil {
			return b, true, nil
		}
		if !domain.IsNotFound(err) {
			return nil, false, err
		}
	}

	b, err := svc.CreateBooking(ctx, in)
	if err != nil {
		return nil, false, err
	}
	if err := store.Put(ctx, key, b.ID); err != nil {
		logger.Warn().Err(err).Str("idempotency_key", key).Str("booking_id", b.ID).Msg("failed to remember idempotency key")
	}
	return b, false, nil
}
