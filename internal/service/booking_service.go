package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/availability"
	"staybook/internal/calendar"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/filter"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxScopeAttempts bounds re-reads when a booking moves to another property
// between the unlocked read and acquiring its scope.
const maxScopeAttempts = 3

// BookingService owns every booking mutation. A mutation validates, writes the
// store and updates the availability index while holding the scope of the
// affected properties; events, notifications and calendar sync run after the
// scope is released.
type BookingService struct {
	repo     domain.Repository
	catalog  *CatalogService
	index    *availability.Index
	eventBus domain.EventPublisher
	notifier domain.Notifier
	syncer   domain.SyncDispatcher
	logger   *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	catalog *CatalogService,
	index *availability.Index,
	eventBus domain.EventPublisher,
	notifier domain.Notifier,
	syncer domain.SyncDispatcher,
	logger *zerolog.Logger,
) *BookingService {
	if index != nil {
		metrics.TrackIndexSize(index.Size)
	}
	return &BookingService{
		repo:     repo,
		catalog:  catalog,
		index:    index,
		eventBus: eventBus,
		notifier: notifier,
		syncer:   syncer,
		logger:   logger,
	}
}

// WarmUp rebuilds the availability index from the active bookings in the store.
// Overlapping stored records are logged and the later one is left out.
func (s *BookingService) WarmUp(ctx context.Context) error {
	active, err := s.repo.GetActiveBookings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active bookings: %w", err)
	}
	if err := s.index.Load(active); err != nil {
		s.logger.Error().Err(err).Msg("stored bookings overlap")
	}
	s.logger.Info().Int("intervals", s.index.Size()).Msg("availability index warmed up")
	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, in models.CreateBookingInput) (*models.Booking, error) {
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !status.ValidInitial() {
		return nil, domain.NewValidationError(domain.ReasonInvalidStatus)
	}

	interval := models.NewInterval(in.StartDate, in.EndDate)
	if err := validateShape(interval, in.GuestCount); err != nil {
		return nil, err
	}
	if err := ValidateAmounts(in.TotalAmount, in.AmountPaid); err != nil {
		return nil, err
	}

	property, err := s.catalog.requireProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	customer, err := s.catalog.requireCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:          uuid.NewString(),
		PropertyID:  in.PropertyID,
		CustomerID:  in.CustomerID,
		StartDate:   interval.Start,
		EndDate:     interval.End,
		Status:      status,
		GuestCount:  in.GuestCount,
		TotalAmount: in.TotalAmount,
		AmountPaid:  in.AmountPaid,
		Notes:       in.Notes,
	}

	if err := s.createLocked(ctx, booking); err != nil {
		s.logRejection(err, booking.PropertyID, "create")
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("property_id", booking.PropertyID).
		Str("interval", interval.String()).Str("status", booking.Status.String()).Msg("booking created")

	payload := events.NewBookingPayload(booking, "")
	s.publishEvent(events.EventBookingCreated, payload)
	s.notify(ctx, notify.KindBookingCreated, payload)
	if booking.Status == models.StatusConfirmed {
		s.dispatchSync(ctx, booking, property, customer)
	}
	return booking.Clone(), nil
}

func (s *BookingService) createLocked(ctx context.Context, booking *models.Booking) error {
	tx := s.index.Lock(booking.PropertyID)
	defer tx.Unlock()

	if err := Validate(tx, booking.PropertyID, booking.Interval(), booking.GuestCount, ""); err != nil {
		return err
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return err
	}
	if err := tx.Insert(booking.PropertyID, booking.ID, booking.Interval()); err != nil {
		if derr := s.repo.DeleteBooking(ctx, booking.ID); derr != nil {
			s.logger.Error().Err(derr).Str("booking_id", booking.ID).Msg("failed to roll back booking after index error")
		}
		return err
	}
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// UpdateBooking edits a booking's attributes. Dates and property are
// re-validated against the other active bookings; a move between properties
// holds both scopes. Edits of a confirmed booking re-sync its calendar event.
func (s *BookingService) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, error) {
	var property *models.Property
	if patch.PropertyID != nil {
		p, err := s.catalog.requireProperty(ctx, *patch.PropertyID)
		if err != nil {
			return nil, err
		}
		property = p
	}
	if patch.CustomerID != nil {
		if _, err := s.catalog.requireCustomer(ctx, *patch.CustomerID); err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		current, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		target := current.PropertyID
		if patch.PropertyID != nil {
			target = *patch.PropertyID
		}

		updated, retry, err := s.updateLocked(ctx, current.PropertyID, target, id, patch)
		if retry {
			continue
		}
		if err != nil {
			s.logRejection(err, target, "update")
			return nil, err
		}

		s.logger.Info().Str("booking_id", id).Str("property_id", updated.PropertyID).
			Str("interval", updated.Interval().String()).Msg("booking updated")

		payload := events.NewBookingPayload(updated, "")
		s.publishEvent(events.EventBookingUpdated, payload)
		s.notify(ctx, notify.KindBookingUpdated, payload)
		if updated.Status == models.StatusConfirmed {
			if property == nil {
				property, _ = s.catalog.GetProperty(ctx, updated.PropertyID)
			}
			customer, _ := s.catalog.GetCustomer(ctx, updated.CustomerID)
			s.dispatchSync(ctx, updated, property, customer)
		}
		return updated.Clone(), nil
	}
	return nil, fmt.Errorf("failed to update booking %s: %w", id, domain.ErrConcurrentModification)
}

func (s *BookingService) updateLocked(ctx context.Context, lockedFrom, target, id string, patch models.BookingPatch) (*models.Booking, bool, error) {
	tx := s.index.Lock(lockedFrom, target)
	defer tx.Unlock()

	fresh, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if fresh.PropertyID != lockedFrom {
		return nil, true, nil
	}

	updated := patch.Apply(fresh)
	if err := ValidateAmounts(updated.TotalAmount, updated.AmountPaid); err != nil {
		return nil, false, err
	}
	if err := validateShape(updated.Interval(), updated.GuestCount); err != nil {
		return nil, false, err
	}
	if updated.IsActive() {
		if err := Validate(tx, updated.PropertyID, updated.Interval(), updated.GuestCount, id); err != nil {
			return nil, false, err
		}
	}

	if err := s.repo.UpdateBooking(ctx, updated); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, true, nil
		}
		return nil, false, err
	}

	if updated.IsActive() && patch.MovesDates() {
		tx.Remove(fresh.PropertyID, id)
		if err := tx.Insert(updated.PropertyID, id, updated.Interval()); err != nil {
			s.restore(ctx, tx, fresh, updated.Version)
			return nil, false, err
		}
	}
	return updated, false, nil
}

// restore puts back the previous record and its interval after an index failure.
func (s *BookingService) restore(ctx context.Context, tx *availability.Tx, previous *models.Booking, version int64) {
	rollback := previous.Clone()
	rollback.Version = version
	if err := s.repo.UpdateBooking(ctx, rollback); err != nil {
		s.logger.Error().Err(err).Str("booking_id", previous.ID).Msg("failed to roll back booking after index error")
	}
	if err := tx.Insert(previous.PropertyID, previous.ID, previous.Interval()); err != nil {
		s.logger.Error().Err(err).Str("booking_id", previous.ID).Msg("failed to restore index slot")
	}
}

// TransitionStatus moves a booking along the lifecycle. Leaving the active set
// frees its interval; confirming dispatches a calendar sync after release.
func (s *BookingService) TransitionStatus(ctx context.Context, id string, to models.Status) (*models.Booking, error) {
	if _, err := models.ParseStatus(string(to)); err != nil {
		return nil, domain.NewValidationError(domain.ReasonInvalidStatus)
	}

	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		current, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}

		updated, from, retry, err := s.transitionLocked(ctx, current.PropertyID, id, to)
		if retry {
			continue
		}
		if err != nil {
			s.logRejection(err, current.PropertyID, "transition")
			return nil, err
		}

		s.logger.Info().Str("booking_id", id).Str("from", from.String()).Str("to", to.String()).Msg("booking status changed")

		payload := events.NewBookingPayload(updated, from)
		s.publishEvent(events.StatusEvent(to), payload)
		s.notify(ctx, notify.KindBookingStatusChanged, payload)
		if to == models.StatusConfirmed {
			property, _ := s.catalog.GetProperty(ctx, updated.PropertyID)
			customer, _ := s.catalog.GetCustomer(ctx, updated.CustomerID)
			s.dispatchSync(ctx, updated, property, customer)
		}
		return updated.Clone(), nil
	}
	return nil, fmt.Errorf("failed to transition booking %s: %w", id, domain.ErrConcurrentModification)
}

func (s *BookingService) transitionLocked(ctx context.Context, propertyID, id string, to models.Status) (*models.Booking, models.Status, bool, error) {
	tx := s.index.Lock(propertyID)
	defer tx.Unlock()

	fresh, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, "", false, err
	}
	if fresh.PropertyID != propertyID {
		return nil, "", true, nil
	}

	from := fresh.Status
	if !from.CanTransition(to) {
		return nil, from, false, &domain.InvalidTransitionError{From: from, To: to}
	}

	if err := s.repo.UpdateBookingStatus(ctx, id, fresh.Version, to); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return nil, from, true, nil
		}
		return nil, from, false, err
	}

	if !to.IsActive() {
		tx.Remove(propertyID, id)
	}

	updated, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		updated = fresh.Clone()
		updated.Status = to
		updated.Version++
	}
	return updated, from, false, nil
}

// DeleteBooking hard-deletes a booking and frees its interval.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	for attempt := 0; attempt < maxScopeAttempts; attempt++ {
		current, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return err
		}

		deleted, retry, err := s.deleteLocked(ctx, current.PropertyID, id)
		if retry {
			continue
		}
		if err != nil {
			return err
		}

		s.logger.Info().Str("booking_id", id).Msg("booking deleted")
		s.publishEvent(events.EventBookingDeleted, events.NewBookingPayload(deleted, ""))
		return nil
	}
	return fmt.Errorf("failed to delete booking %s: %w", id, domain.ErrConcurrentModification)
}

func (s *BookingService) deleteLocked(ctx context.Context, propertyID, id string) (*models.Booking, bool, error) {
	tx := s.index.Lock(propertyID)
	defer tx.Unlock()

	fresh, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if fresh.PropertyID != propertyID {
		return nil, true, nil
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return nil, false, err
	}
	tx.Remove(propertyID, id)
	return fresh, false, nil
}

// CheckAvailability reports whether interval is free for the property and,
// when it is not, which booking holds it. The answer is advisory.
func (s *BookingService) CheckAvailability(ctx context.Context, propertyID string, interval models.Interval) (string, bool, error) {
	interval = models.NewInterval(interval.Start, interval.End)
	if !interval.Valid() {
		return "", false, domain.NewValidationError(domain.ReasonInvalidRange)
	}
	if _, err := s.catalog.requireProperty(ctx, propertyID); err != nil {
		return "", false, err
	}
	if id, found := s.index.Conflict(propertyID, interval, ""); found {
		return id, false, nil
	}
	return "", true, nil
}

// ListBookings returns the filtered bookings sorted by start date.
func (s *BookingService) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	if err := filter.ValidateStatus(f.Status); err != nil {
		return nil, err
	}

	var (
		bookings []*models.Booking
		err      error
	)
	if f.DateRange != nil {
		if !f.DateRange.Valid() {
			return nil, domain.NewValidationError(domain.ReasonInvalidRange)
		}
		bookings, err = s.repo.GetBookingsByDateRange(ctx, f.DateRange.Start, f.DateRange.End)
	} else {
		bookings, err = s.repo.GetAllBookings(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return calendar.SortForList(filter.Apply(bookings, f, s.catalog)), nil
}

// GetMonthView buckets the month's bookings by day using closed intervals.
func (s *BookingService) GetMonthView(ctx context.Context, propertyID, status string, year int, month time.Month) (*models.MonthView, error) {
	if err := filter.ValidateStatus(status); err != nil {
		return nil, err
	}
	if month < time.January || month > time.December {
		return nil, domain.NewValidationError(domain.ReasonInvalidDate)
	}

	first, last := calendar.MonthBounds(year, month)
	bookings, err := s.repo.GetBookingsByDateRange(ctx, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to load month: %w", err)
	}

	visible := filter.Apply(bookings, models.BookingFilter{PropertyID: propertyID, Status: status}, s.catalog)
	return calendar.MonthGrid(visible, year, month), nil
}

// GetDayDetail returns the bookings shown on one day, start date first.
func (s *BookingService) GetDayDetail(ctx context.Context, propertyID, status string, date time.Time) ([]*models.Booking, error) {
	if err := filter.ValidateStatus(status); err != nil {
		return nil, err
	}

	day := models.NormalizeDate(date)
	bookings, err := s.repo.GetBookingsByDateRange(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load day: %w", err)
	}

	visible := filter.Apply(bookings, models.BookingFilter{PropertyID: propertyID, Status: status}, s.catalog)
	return calendar.SortForList(calendar.DayDetail(visible, day)), nil
}

func (s *BookingService) dispatchSync(ctx context.Context, booking *models.Booking, property *models.Property, customer *models.Customer) {
	if s.syncer == nil || !property.SyncEnabled() {
		return
	}
	req := domain.SyncRequest{Booking: booking.Clone(), Property: property, Customer: customer}
	if err := s.syncer.Dispatch(context.WithoutCancel(ctx), req); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("calendar sync dispatch error")
	}
}

func (s *BookingService) publishEvent(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", payload.BookingID).Msg("publish event error")
	}
}

func (s *BookingService) notify(ctx context.Context, kind string, payload events.BookingEventPayload) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, kind, payload)
	}
}

// logRejection keeps caller mistakes at debug level and store faults at error.
func (s *BookingService) logRejection(err error, propertyID, op string) {
	var (
		conflict   *domain.ConflictError
		validation *domain.ValidationError
		transition *domain.InvalidTransitionError
		notFound   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &conflict):
		metrics.IncConflict()
		s.logger.Debug().Str("op", op).Str("property_id", propertyID).Str("conflicting_booking_id", conflict.ConflictingBookingID).Msg("booking rejected")
	case errors.As(err, &validation), errors.As(err, &transition), errors.As(err, &notFound):
		s.logger.Debug().Err(err).Str("op", op).Str("property_id", propertyID).Msg("booking rejected")
	default:
		s.logger.Error().Err(err).Str("op", op).Str("property_id", propertyID).Msg("booking operation failed")
	}
}
