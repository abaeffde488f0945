package listing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "listing:draft:"

// DraftStore keeps in-progress edit sessions in Redis. An expired draft is
// simply gone; the saved listing is unaffected.
type DraftStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewDraftStore constructs a draft store.
func NewDraftStore(client redis.UniversalClient, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &DraftStore{client: client, ttl: ttl}
}

// Load returns the draft for id. It reports whether the draft existed.
func (d *DraftStore) Load(ctx context.Context, id uuid.UUID) (Listing, bool, error) {
	if d == nil || d.client == nil {
		return Listing{}, false, nil
	}
	data, err := d.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Listing{}, false, nil
		}
		return Listing{}, false, err
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return Listing{}, false, err
	}
	l.Draft = true
	return l, true, nil
}

// Put stores l as the draft and refreshes its TTL.
func (d *DraftStore) Put(ctx context.Context, l Listing) error {
	if d == nil || d.client == nil {
		return errors.New("listing: draft store not configured")
	}
	l.Draft = true
	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return d.client.Set(ctx, draftKey(l.ID), data, d.ttl).Err()
}

// Drop removes the draft for id.
func (d *DraftStore) Drop(ctx context.Context, id uuid.UUID) error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Del(ctx, draftKey(id)).Err()
}

func draftKey(id uuid.UUID) string {
	return draftKeyPrefix + id.String()
}
