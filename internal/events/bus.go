package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUnknownTopic is returned by Emit for topics outside DefaultTopics.
var ErrUnknownTopic = errors.New("events: unknown topic")

// Event is a persisted domain event.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// NewEvent carries the fields required to record an event.
type NewEvent struct {
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
}

// EventStore persists events; PGStore is the production implementation.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, arg NewEvent) (Event, error)
}

// Notifier receives every event after it was stored.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

func (f NotifierFunc) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus stores listing events and fans them out to notifiers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit stores the event, then calls every notifier in order. The stored event
// is returned even when notifiers fail; their errors are joined.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return Event{}, errors.New("events: topic is required")
	case !slices.Contains(DefaultTopics(), topic):
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	case aggregateID == uuid.Nil:
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}

	ctx, span := otel.Tracer("b2b/events").Start(ctx, "events.emit")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.topic", topic),
		attribute.String("event.aggregate_id", aggregateID.String()),
	)

	ev, err := b.Store.InsertDomainEvent(ctx, NewEvent{Topic: topic, AggregateID: aggregateID, Payload: encoded})
	if err != nil {
		span.SetStatus(codes.Error, "persist")
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	var errs []error
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: notify %s: %w", ev.Topic, err))
		}
	}
	if joined := errors.Join(errs...); joined != nil {
		span.RecordError(joined)
		return ev, joined
	}
	return ev, nil
}

func encodePayload(payload any) ([]byte, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		return json.Marshal(v)
	}
	if len(raw) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid json")
	}
	return slices.Clone(raw), nil
}
