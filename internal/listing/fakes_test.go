package listing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/common"
	"github.com/noah-isme/backend-b2b/internal/events"
	"github.com/noah-isme/backend-b2b/internal/lock"
	"github.com/noah-isme/backend-b2b/internal/pricing"
)

type memoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Listing
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[uuid.UUID]Listing{}}
}

func (m *memoryStore) Insert(_ context.Context, l Listing) (Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[l.ID]; exists {
		return Listing{}, ErrConflict
	}
	now := time.Now().UTC()
	l.Version = 1
	l.Draft = false
	l.CreatedAt = now
	l.UpdatedAt = now
	m.rows[l.ID] = l
	return l, nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (m *memoryStore) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]Listing, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owned []Listing
	for _, l := range m.rows {
		if l.OwnerID == ownerID {
			owned = append(owned, l)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Title < owned[j].Title })
	total := int64(len(owned))
	if offset >= len(owned) {
		return []Listing{}, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

func (m *memoryStore) Update(_ context.Context, l Listing) (Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[l.ID]
	if !ok {
		return Listing{}, ErrNotFound
	}
	if current.Version != l.Version {
		return Listing{}, ErrConflict
	}
	l.Version = current.Version + 1
	l.Draft = false
	l.CreatedAt = current.CreatedAt
	l.UpdatedAt = time.Now().UTC()
	m.rows[l.ID] = l
	return l, nil
}

type memoryEvents struct {
	mu     sync.Mutex
	topics []string
	events []events.Event
}

func (m *memoryEvents) InsertDomainEvent(_ context.Context, arg events.NewEvent) (events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := events.Event{ID: uuid.New(), Topic: arg.Topic, AggregateID: arg.AggregateID, Payload: arg.Payload, OccurredAt: time.Now()}
	m.topics = append(m.topics, arg.Topic)
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memoryEvents) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}

type fixture struct {
	svc    *Service
	store  *memoryStore
	events *memoryEvents
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

var (
	owner   = Editor{UserID: "owner-1", Role: common.RoleBusinessOwner}
	other   = Editor{UserID: "owner-2", Role: common.RoleBusinessOwner}
	student = Editor{UserID: "owner-1", Role: common.RoleStudent}
)

func newFixture(t *testing.T, calc pricing.Calculator) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemoryStore()
	evs := &memoryEvents{}
	svc, err := NewService(ServiceConfig{
		Store:      store,
		Drafts:     NewDraftStore(rdb, time.Hour),
		Locker:     lock.Locker{R: rdb, RetryBackoff: 5 * time.Millisecond},
		Bus:        &events.Bus{Store: evs},
		Calculator: calc,
		Logger:     zerolog.Nop(),
		LockTTL:    time.Second,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, events: evs, mr: mr, rdb: rdb}
}

func (f *fixture) createB2B(t *testing.T) Listing {
	t.Helper()
	l, err := f.svc.Create(context.Background(), owner, CreateInput{Title: "Notebook A5", BasePrice: "12.50", Quantity: 400, IsB2B: true})
	require.NoError(t, err)
	return l
}
