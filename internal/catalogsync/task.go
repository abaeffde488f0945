package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b/internal/events"
)

const (
	// TaskListingSync pushes a saved listing to the external catalog.
	TaskListingSync = "listing:sync"
	// Queue is the asynq queue catalog tasks run on.
	Queue = "catalog"
)

// Payload is the asynq task body. Listing is the event payload verbatim so
// market prices reach the catalog exactly as the owner saw them.
type Payload struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurredAt"`
	ListingID  string          `json:"listingId"`
	Listing    json.RawMessage `json:"listing"`
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer forwards listing events to the worker as listing:sync tasks.
type Enqueuer struct {
	Client   TaskEnqueuer
	Queue    string
	MaxRetry int
	Logger   zerolog.Logger
}

// Notify implements events.Notifier.
func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicListingSaved && ev.Topic != events.TopicListingB2BDisabled {
		return nil
	}
	if e.Client == nil {
		return errors.New("catalogsync: task client not configured")
	}
	var head struct {
		ListingID string `json:"listingId"`
	}
	if err := json.Unmarshal(ev.Payload, &head); err != nil {
		return fmt.Errorf("catalogsync: decode event payload: %w", err)
	}
	body, err := json.Marshal(Payload{
		EventID:    ev.ID.String(),
		Topic:      ev.Topic,
		OccurredAt: ev.OccurredAt,
		ListingID:  head.ListingID,
		Listing:    ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("catalogsync: encode task: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	info, err := e.Client.EnqueueContext(ctx, asynq.NewTask(TaskListingSync, body), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("catalogsync: enqueue: %w", err)
	}
	e.Logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("listing_id", head.ListingID).Msg("catalog_sync_enqueued")
	return nil
}
