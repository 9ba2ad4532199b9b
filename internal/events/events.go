package events

import (
	"encoding/json"
	"sync"
	"time"

	"staybook/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventBookingDeleted   = "booking_deleted"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

// StatusEvent maps a reached status to its event type.
func StatusEvent(status models.Status) string {
	switch status {
	case models.StatusConfirmed:
		return EventBookingConfirmed
	case models.StatusCancelled:
		return EventBookingCancelled
	case models.StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingUpdated
	}
}

// BookingEventPayload is the booking snapshot carried by every booking event.
type BookingEventPayload struct {
	BookingID      string    `json:"booking_id"`
	PropertyID     string    `json:"property_id"`
	CustomerID     string    `json:"customer_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	GuestCount     int       `json:"guest_count"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewBookingPayload snapshots b. previous is empty unless the status changed.
func NewBookingPayload(b *models.Booking, previous models.Status) BookingEventPayload {
	return BookingEventPayload{
		BookingID:      b.ID,
		PropertyID:     b.PropertyID,
		CustomerID:     b.CustomerID,
		StartDate:      b.StartDate.Format(models.DateLayout),
		EndDate:        b.EndDate.Format(models.DateLayout),
		Status:         b.Status.String(),
		PreviousStatus: previous.String(),
		GuestCount:     b.GuestCount,
		OccurredAt:     time.Now().UTC(),
	}
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(*Event, error)
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures. Publishing never fails because of a handler.
func (b *EventBus) OnError(fn func(*Event, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type, or AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously, then the wildcard ones.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
