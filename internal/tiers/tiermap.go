package tiers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-b2b/internal/pricing"
)

// ErrTierUnset is returned when a tier has no seller price yet.
var ErrTierUnset = errors.New("tier price not set")

// Tier is one quantity band of a listing. SellerPrice keeps the owner's raw
// input; MarketPrice is always derived from it.
type Tier struct {
	Range       Range  `json:"range"`
	SellerPrice string `json:"sellerPrice"`
	MarketPrice string `json:"marketPrice"`
}

// IsSet reports whether the owner entered a seller price.
func (t Tier) IsSet() bool {
	return t.SellerPrice != ""
}

// TierMap holds all enumerated tiers of one listing. It is a value: every
// update returns a new map and leaves the receiver untouched.
type TierMap struct {
	calc  pricing.Calculator
	tiers [tierCount]Tier
}

// Init returns a map with every range present and no prices entered.
func Init(calc pricing.Calculator) TierMap {
	m := TierMap{calc: calc}
	for i, r := range ordered {
		m.tiers[i] = Tier{Range: r}
	}
	return m
}

// Calculator returns the calculator used to derive market prices.
func (m TierMap) Calculator() pricing.Calculator {
	return m.calc
}

// Get returns the tier stored under r.
func (m TierMap) Get(r Range) (Tier, error) {
	idx := r.index()
	if idx < 0 {
		return Tier{}, fmt.Errorf("%w: %q", ErrInvalidTierRange, string(r))
	}
	return m.tier(idx), nil
}

// SetSellerPrice records raw seller input for r and recomputes that tier's
// market price only. Whitespace-only input clears the tier.
func (m TierMap) SetSellerPrice(r Range, raw string) (TierMap, error) {
	idx := r.index()
	if idx < 0 {
		return m, fmt.Errorf("%w: %q", ErrInvalidTierRange, string(r))
	}
	next := m
	next.tiers[idx] = m.derive(ordered[idx], raw)
	return next, nil
}

// Summarize returns the tiers in display order.
func (m TierMap) Summarize() []Tier {
	out := make([]Tier, tierCount)
	for i := range ordered {
		out[i] = m.tier(i)
	}
	return out
}

// UnitPriceFor returns the tier covering qty and its market unit price
// rounded to minor units.
func (m TierMap) UnitPriceFor(qty int) (Tier, decimal.Decimal, error) {
	r, err := ForQuantity(qty)
	if err != nil {
		return Tier{}, decimal.Zero, err
	}
	t := m.tier(r.index())
	if !t.IsSet() {
		return t, decimal.Zero, fmt.Errorf("%w: %s", ErrTierUnset, r)
	}
	unit := m.calc.ComputeMarketPrice(pricing.ParseSellerPrice(t.SellerPrice)).Round(pricing.MinorUnits)
	return t, unit, nil
}

// Complete reports whether every tier has a seller price.
func (m TierMap) Complete() bool {
	for i := range ordered {
		if !m.tier(i).IsSet() {
			return false
		}
	}
	return true
}

// WithCalculator re-derives every tier with calc.
func (m TierMap) WithCalculator(calc pricing.Calculator) TierMap {
	next := TierMap{calc: calc}
	for i, r := range ordered {
		next.tiers[i] = next.derive(r, m.tiers[i].SellerPrice)
	}
	return next
}

func (m TierMap) tier(idx int) Tier {
	t := m.tiers[idx]
	if t.Range == "" {
		t.Range = ordered[idx]
	}
	return t
}

func (m TierMap) derive(r Range, raw string) Tier {
	if strings.TrimSpace(raw) == "" {
		return Tier{Range: r}
	}
	return Tier{
		Range:       r,
		SellerPrice: raw,
		MarketPrice: m.calc.ComputeMarketPriceString(raw),
	}
}

type wireTier struct {
	SellerPrice json.RawMessage `json:"sellerPrice"`
	MarketPrice string          `json:"marketPrice"`
}

// MarshalJSON writes the map as an object keyed by range, in display order.
func (m TierMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := range ordered {
		t := m.tier(i)
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(t.Range))
		if err != nil {
			return nil, err
		}
		seller, err := json.Marshal(t.SellerPrice)
		if err != nil {
			return nil, err
		}
		market, err := json.Marshal(t.MarketPrice)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"sellerPrice":`)
		buf.Write(seller)
		buf.WriteString(`,"marketPrice":`)
		buf.Write(market)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form written by MarshalJSON. Seller prices
// may be strings or numbers; stored market prices are ignored and derived
// again with the map's calculator. Missing ranges are left unset.
func (m *TierMap) UnmarshalJSON(data []byte) error {
	var raw map[string]wireTier
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next := Init(m.calc)
	for key, wt := range raw {
		r, err := ParseRange(key)
		if err != nil {
			return err
		}
		seller, err := sellerInput(wt.SellerPrice)
		if err != nil {
			return fmt.Errorf("tier %s: %w", r, err)
		}
		next.tiers[r.index()] = next.derive(r, seller)
	}
	*m = next
	return nil
}

func sellerInput(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("sellerPrice must be a string or number: %w", err)
	}
	return n.String(), nil
}
