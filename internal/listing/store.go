package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-b2b/internal/tiers"
)

// Store persists saved listings.
type Store interface {
	Insert(ctx context.Context, l Listing) (Listing, error)
	Get(ctx context.Context, id uuid.UUID) (Listing, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Listing, int64, error)
	// Update writes l when the stored version equals l.Version and bumps it.
	Update(ctx context.Context, l Listing) (Listing, error)
}

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store on Postgres. Tiers are stored as JSONB in the
// range-keyed object form.
type PGStore struct {
	DB DBTX
}

const listingColumns = `id, owner_id, title, base_price::text, quantity, is_b2b,
	COALESCE(selected_range, ''), tiers, version, created_at, updated_at`

const insertListing = `
INSERT INTO listings (id, owner_id, title, base_price, quantity, is_b2b, selected_range, tiers)
VALUES ($1, $2, $3, $4::numeric, $5, $6, NULLIF($7, ''), $8)
RETURNING ` + listingColumns

const getListing = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

const listListingsByOwner = `SELECT ` + listingColumns + `
FROM listings WHERE owner_id = $1
ORDER BY updated_at DESC, id
LIMIT $2 OFFSET $3`

const countListingsByOwner = `SELECT count(*) FROM listings WHERE owner_id = $1`

const updateListing = `
UPDATE listings
SET title = $3, base_price = $4::numeric, quantity = $5, is_b2b = $6,
	selected_range = NULLIF($7, ''), tiers = $8,
	version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + listingColumns

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, l Listing) (Listing, error) {
	tiersJSON, err := encodeTiers(l)
	if err != nil {
		return Listing{}, err
	}
	row := s.DB.QueryRow(ctx, insertListing,
		l.ID, l.OwnerID, l.Title, l.BasePrice.String(), l.Quantity, l.IsB2B, string(l.SelectedRange), tiersJSON)
	out, err := scanListing(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Listing{}, fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return out, nil
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, id uuid.UUID) (Listing, error) {
	out, err := scanListing(s.DB.QueryRow(ctx, getListing, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return out, nil
}

// ListByOwner implements Store.
func (s PGStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Listing, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, countListingsByOwner, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	rows, err := s.DB.Query(ctx, listListingsByOwner, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()
	items := make([]Listing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return items, total, nil
}

// Update implements Store.
func (s PGStore) Update(ctx context.Context, l Listing) (Listing, error) {
	tiersJSON, err := encodeTiers(l)
	if err != nil {
		return Listing{}, err
	}
	row := s.DB.QueryRow(ctx, updateListing,
		l.ID, l.Version, l.Title, l.BasePrice.String(), l.Quantity, l.IsB2B, string(l.SelectedRange), tiersJSON)
	out, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.Get(ctx, l.ID); errors.Is(getErr, ErrNotFound) {
				return Listing{}, ErrNotFound
			}
			return Listing{}, ErrConflict
		}
		return Listing{}, fmt.Errorf("update listing: %w", err)
	}
	return out, nil
}

func encodeTiers(l Listing) ([]byte, error) {
	if !l.IsB2B || l.Tiers == nil {
		return nil, nil
	}
	data, err := json.Marshal(l.Tiers)
	if err != nil {
		return nil, fmt.Errorf("encode tiers: %w", err)
	}
	return data, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var (
		l         Listing
		basePrice string
		selected  string
		tiersJSON []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &basePrice, &l.Quantity, &l.IsB2B,
		&selected, &tiersJSON, &l.Version, &createdAt, &updatedAt); err != nil {
		return Listing{}, err
	}
	price, err := decimal.NewFromString(basePrice)
	if err != nil {
		return Listing{}, fmt.Errorf("decode base price: %w", err)
	}
	l.BasePrice = price
	l.SelectedRange = tiers.Range(selected)
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt
	if l.IsB2B && len(tiersJSON) > 0 {
		var m tiers.TierMap
		if err := json.Unmarshal(tiersJSON, &m); err != nil {
			return Listing{}, fmt.Errorf("decode tiers: %w", err)
		}
		l.Tiers = &m
	}
	return l, nil
}
