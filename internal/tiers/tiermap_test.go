package tiers_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-b2b/internal/pricing"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

func TestInitHasEveryRange(t *testing.T) {
	for i := 0; i < 3; i++ {
		m := tiers.Init(pricing.Default())
		summary := m.Summarize()
		require.Len(t, summary, 3)
		require.Equal(t, tiers.Range1To5, summary[0].Range)
		require.Equal(t, tiers.Range5To10, summary[1].Range)
		require.Equal(t, tiers.Range10To20, summary[2].Range)
		for _, tier := range summary {
			require.False(t, tier.IsSet())
			require.Empty(t, tier.MarketPrice)
		}
	}
}

func TestZeroValueMapStillComplete(t *testing.T) {
	var m tiers.TierMap
	summary := m.Summarize()
	require.Len(t, summary, 3)
	require.Equal(t, tiers.Range10To20, summary[2].Range)
}

func TestSetSellerPriceUpdatesOnlyThatTier(t *testing.T) {
	base := tiers.Init(pricing.Default())
	base, err := base.SetSellerPrice(tiers.Range1To5, "300")
	require.NoError(t, err)
	base, err = base.SetSellerPrice(tiers.Range10To20, "180")
	require.NoError(t, err)

	before1, _ := base.Get(tiers.Range1To5)
	before3, _ := base.Get(tiers.Range10To20)

	next, err := base.SetSellerPrice(tiers.Range5To10, "240")
	require.NoError(t, err)

	after1, _ := next.Get(tiers.Range1To5)
	after3, _ := next.Get(tiers.Range10To20)
	require.Equal(t, before1, after1)
	require.Equal(t, before3, after3)

	mid, _ := next.Get(tiers.Range5To10)
	require.Equal(t, "240", mid.SellerPrice)
	// 240 + 12 + 20 = 272, tax 48.96
	require.Equal(t, "320.96", mid.MarketPrice)

	// receiver untouched
	old, _ := base.Get(tiers.Range5To10)
	require.False(t, old.IsSet())
}

func TestSetSellerPriceInvalidRange(t *testing.T) {
	m, err := tiers.Init(pricing.Default()).SetSellerPrice(tiers.Range1To5, "100")
	require.NoError(t, err)
	before := m.Summarize()

	out, err := m.SetSellerPrice(tiers.Range("20-50"), "10")
	require.Error(t, err)
	require.True(t, errors.Is(err, tiers.ErrInvalidTierRange))
	require.Equal(t, before, out.Summarize())
	require.Equal(t, before, m.Summarize())
}

func TestOwnerTypesScenario(t *testing.T) {
	var sel tiers.Selection
	r, err := sel.Select("1-5")
	require.NoError(t, err)
	require.Equal(t, tiers.Range1To5, sel.Active())

	m, err := tiers.Init(pricing.Default()).SetSellerPrice(r, "250")
	require.NoError(t, err)
	tier, err := m.Get(r)
	require.NoError(t, err)
	require.Equal(t, "250", tier.SellerPrice)
	require.Equal(t, "333.35", tier.MarketPrice)
}

func TestPartialAndInvalidInput(t *testing.T) {
	m := tiers.Init(pricing.Default())
	cases := []struct {
		raw    string
		market string
		set    bool
	}{
		{raw: "12.", market: "38.47", set: true},
		{raw: "-", market: "23.60", set: true},
		{raw: "-40", market: "23.60", set: true},
		{raw: "abc", market: "23.60", set: true},
		{raw: "  ", market: "", set: false},
	}
	for _, tc := range cases {
		next, err := m.SetSellerPrice(tiers.Range5To10, tc.raw)
		require.NoError(t, err)
		got, _ := next.Get(tiers.Range5To10)
		require.Equal(t, tc.market, got.MarketPrice, "input %q", tc.raw)
		require.Equal(t, tc.set, got.IsSet(), "input %q", tc.raw)
	}
}

func TestSelectionRejectsUnknownRange(t *testing.T) {
	var sel tiers.Selection
	_, err := sel.Select("5-10")
	require.NoError(t, err)
	_, err = sel.Select("0-1")
	require.ErrorIs(t, err, tiers.ErrInvalidTierRange)
	require.Equal(t, tiers.Range5To10, sel.Active())
	sel.Reset()
	require.Equal(t, tiers.Range(""), sel.Active())
}

func TestMarshalJSONShapeAndOrder(t *testing.T) {
	m, err := tiers.Init(pricing.Default()).SetSellerPrice(tiers.Range1To5, "100")
	require.NoError(t, err)
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.Equal(t,
		`{"1-5":{"sellerPrice":"100","marketPrice":"147.50"},"5-10":{"sellerPrice":"","marketPrice":""},"10-20":{"sellerPrice":"","marketPrice":""}}`,
		string(data))
}

func TestUnmarshalJSONRecomputesMarketPrice(t *testing.T) {
	payload := `{"1-5":{"sellerPrice":100,"marketPrice":"1.00"},"10-20":{"sellerPrice":"0","marketPrice":"999"}}`
	var m tiers.TierMap
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	first, _ := m.Get(tiers.Range1To5)
	require.Equal(t, "100", first.SellerPrice)
	require.Equal(t, "147.50", first.MarketPrice)

	mid, _ := m.Get(tiers.Range5To10)
	require.False(t, mid.IsSet())

	last, _ := m.Get(tiers.Range10To20)
	require.Equal(t, "23.60", last.MarketPrice)
}

func TestUnmarshalJSONRejectsUnknownRange(t *testing.T) {
	var m tiers.TierMap
	err := json.Unmarshal([]byte(`{"20-50":{"sellerPrice":"1"}}`), &m)
	require.ErrorIs(t, err, tiers.ErrInvalidTierRange)
}

func TestUnmarshalJSONRejectsPaddedRange(t *testing.T) {
	var m tiers.TierMap
	err := json.Unmarshal([]byte(`{"1-5":{"sellerPrice":"100"}," 1-5 ":{"sellerPrice":"999"}}`), &m)
	require.ErrorIs(t, err, tiers.ErrInvalidTierRange)
}

func TestParseRangeIsExact(t *testing.T) {
	r, err := tiers.ParseRange("10-20")
	require.NoError(t, err)
	require.Equal(t, tiers.Range10To20, r)

	for _, label := range []string{" 1-5", "1-5 ", "\t5-10", "", "1 - 5"} {
		_, err := tiers.ParseRange(label)
		require.ErrorIs(t, err, tiers.ErrInvalidTierRange, "label %q", label)
	}
}

func TestBounds(t *testing.T) {
	lo, hi := tiers.Range5To10.Bounds()
	require.Equal(t, 5, lo)
	require.Equal(t, 10, hi)
	lo, hi = tiers.Range("20-50").Bounds()
	require.Zero(t, lo)
	require.Zero(t, hi)
}

func TestForQuantity(t *testing.T) {
	cases := map[int]tiers.Range{
		1:   tiers.Range1To5,
		4:   tiers.Range1To5,
		5:   tiers.Range5To10,
		9:   tiers.Range5To10,
		10:  tiers.Range10To20,
		20:  tiers.Range10To20,
		150: tiers.Range10To20,
	}
	for qty, want := range cases {
		got, err := tiers.ForQuantity(qty)
		require.NoError(t, err)
		require.Equal(t, want, got, "qty %d", qty)
	}
	_, err := tiers.ForQuantity(0)
	require.ErrorIs(t, err, tiers.ErrQuantityOutOfRange)
}

func TestUnitPriceFor(t *testing.T) {
	m, err := tiers.Init(pricing.Default()).SetSellerPrice(tiers.Range5To10, "250")
	require.NoError(t, err)

	tier, unit, err := m.UnitPriceFor(7)
	require.NoError(t, err)
	require.Equal(t, tiers.Range5To10, tier.Range)
	require.True(t, unit.Equal(decimal.RequireFromString("333.35")))

	_, _, err = m.UnitPriceFor(2)
	require.ErrorIs(t, err, tiers.ErrTierUnset)
	require.False(t, m.Complete())
}

func TestWithCalculatorRederives(t *testing.T) {
	m, err := tiers.Init(pricing.Default()).SetSellerPrice(tiers.Range1To5, "100")
	require.NoError(t, err)
	rates := pricing.DefaultRates()
	rates.DeliveryFee = decimal.NewFromInt(30)
	custom := pricing.NewCalculator(rates)
	next := m.WithCalculator(custom)
	tier, _ := next.Get(tiers.Range1To5)
	// 100 + 5 + 30 = 135, tax 24.3
	require.Equal(t, "159.30", tier.MarketPrice)
}
