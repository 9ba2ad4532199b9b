// Package mq forwards booking domain events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staybook/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	publishTimeout   = 5 * time.Second
	forwardQueueSize = 256
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends an already encoded JSON body with the event type as routing key.
func (p *Publisher) Publish(ctx context.Context, key string, body []byte, at time.Time) error {
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    at,
		Type:         key,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// EventPublisher delivers one encoded event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, key string, body []byte, at time.Time) error
}

var errQueueFull = errors.New("rabbitmq forward queue full, event dropped")

// Forwarder copies bus events to the broker from its own goroutine, so a slow
// or unreachable broker never holds up the booking operation that emitted them.
type Forwarder struct {
	pub    EventPublisher
	queue  chan *events.Event
	logger *zerolog.Logger
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Forward subscribes a new Forwarder to every event on the bus and starts it.
// When the queue is full the event is dropped and reported to the bus.
func Forward(bus *events.EventBus, p EventPublisher, logger *zerolog.Logger) *Forwarder {
	f := &Forwarder{
		pub:    p,
		queue:  make(chan *events.Event, forwardQueueSize),
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	bus.Subscribe(events.AllEvents, f.enqueue)
	go f.run()
	return f
}

func (f *Forwarder) enqueue(e *events.Event) error {
	select {
	case f.queue <- e:
		return nil
	default:
		return errQueueFull
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for {
		select {
		case e := <-f.queue:
			f.publish(e)
		case <-f.stop:
			for {
				select {
				case e := <-f.queue:
					f.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(e *events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := f.pub.Publish(ctx, e.Type, e.Payload, e.CreatedAt); err != nil {
		f.logger.Warn().Err(err).Str("event", e.Type).Msg("failed to forward event to rabbitmq")
	}
}

// Close publishes what is already queued and waits for the forwarder to exit.
// It must be called before the publisher is closed.
func (f *Forwarder) Close() {
	f.once.Do(func() { close(f.stop) })
	<-f.done
}
