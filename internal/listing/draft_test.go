package listing

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/pricing"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

func TestDraftStoreRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	drafts := NewDraftStore(rdb, time.Minute)
	ctx := context.Background()
	m, err := tiers.Init(pricing.Default()).SetSellerPrice(tiers.Range10To20, "180")
	require.NoError(t, err)
	l := Listing{ID: uuid.New(), OwnerID: "owner-1", Title: "Folders", IsB2B: true, Tiers: &m, Version: 3}
	require.NoError(t, drafts.Put(ctx, l))

	got, ok, err := drafts.Load(ctx, l.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Draft)
	require.EqualValues(t, 3, got.Version)
	tier, err := got.Tiers.Get(tiers.Range10To20)
	require.NoError(t, err)
	// 180 + 9 + 20 = 209, tax 37.62
	require.Equal(t, "246.62", tier.MarketPrice)

	mr.FastForward(2 * time.Minute)
	_, ok, err = drafts.Load(ctx, l.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDraftStoreIgnoresTamperedMarketPrice(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	id := uuid.New()
	payload := `{"id":"` + id.String() + `","ownerId":"owner-1","title":"x","basePrice":"0","quantity":0,"isB2B":true,` +
		`"tiers":{"1-5":{"sellerPrice":"100","marketPrice":"1.00"}},"version":1,"draft":true,` +
		`"createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"}`
	require.NoError(t, mr.Set(draftKeyPrefix+id.String(), payload))

	got, ok, err := NewDraftStore(rdb, time.Minute).Load(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	tier, _ := got.Tiers.Get(tiers.Range1To5)
	require.Equal(t, "147.50", tier.MarketPrice)
}
