package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMarketJSON(t *testing.T) {
	out, err := run(t, "market", "250", "--json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "12.50", got["commission"])
	require.Equal(t, "282.50", got["subtotal"])
	require.Equal(t, "50.85", got["tax"])
	require.Equal(t, "333.35", got["market"])
}

func TestMarketRateOverride(t *testing.T) {
	out, err := run(t, "--delivery", "35", "--tax", "0.12", "market", "100", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"market":"156.80"`)

	_, err = run(t, "--tax", "-1", "market", "100")
	require.Error(t, err)
}

func TestMarketZeroCommission(t *testing.T) {
	out, err := run(t, "--commission", "0", "market", "100", "--json")
	require.NoError(t, err)
	// 100 + 0 + 20 = 120, tax 21.60
	require.Contains(t, out, `"commission":"0.00"`)
	require.Contains(t, out, `"market":"141.60"`)
}

func TestTiersSummaryAndQuote(t *testing.T) {
	out, err := run(t, "tiers", "--price", "1-5=250", "--price", "5-10=230", "--qty", "7")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[1], "1-5"))
	require.Contains(t, lines[1], "333.35")
	require.Contains(t, lines[2], "308.57")
	require.Contains(t, lines[3], "-")
	require.Equal(t, "quote: 7 x 308.57 (5-10) = 2159.99", lines[4])
}

func TestTiersRejectsUnknownRange(t *testing.T) {
	_, err := run(t, "tiers", "--price", "20-50=100")
	require.Error(t, err)

	_, err = run(t, "tiers", "--price", "1-5")
	require.Error(t, err)

	out, err := run(t, "tiers", "--price", " 1-5 =100")
	require.NoError(t, err)
	require.Contains(t, out, "147.50")
}
