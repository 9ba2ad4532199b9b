package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"staybook/internal/availability"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []domain.SyncRequest
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req domain.SyncRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(_ context.Context, kind string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

type fixture struct {
	svc      *BookingService
	db       *database.DB
	index    *availability.Index
	catalog  *CatalogService
	bus      *events.EventBus
	sync     *recordingDispatcher
	notifier *recordingNotifier
	events   *[]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.SyncCatalog(ctx,
		[]models.Property{
			{ID: "villa", Name: "Seaside Villa", GoogleCalendarID: "villa-cal"},
			{ID: "cabin", Name: "Mountain Cabin"},
		},
		[]models.Customer{
			{ID: "anna", Name: "Anna Smith", Email: "anna@example.com"},
			{ID: "john", Name: "John Doe"},
		},
	))

	catalog := NewCatalogService(db, &logger)
	require.NoError(t, catalog.Refresh(ctx))

	bus := events.NewEventBus()
	var seen []string
	var mu sync.Mutex
	bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		return nil
	})

	index := availability.NewIndex()
	dispatcher := &recordingDispatcher{}
	notifier := &recordingNotifier{}
	svc := NewBookingService(db, catalog, index, bus, notifier, dispatcher, &logger)

	return &fixture{svc: svc, db: db, index: index, catalog: catalog, bus: bus, sync: dispatcher, notifier: notifier, events: &seen}
}

func day(s string) time.Time {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func input(property, customer, start, end string) models.CreateBookingInput {
	return models.CreateBookingInput{
		PropertyID: property,
		CustomerID: customer,
		StartDate:  day(start),
		EndDate:    day(end),
		GuestCount: 2,
	}
}

func (f *fixture) create(t *testing.T, property, start, end string) *models.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), input(property, "anna", start, end))
	require.NoError(t, err)
	return b
}

func ids(bs []*models.Booking) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.ID)
	}
	return out
}

func newIndex() *availability.Index {
	return availability.NewIndex()
}
