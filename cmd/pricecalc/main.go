// Command pricecalc prints market prices and tier summaries offline, using the
// same calculator as the API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-b2b/internal/pricing"
	"github.com/noah-isme/backend-b2b/internal/tiers"
)

type rateFlags struct {
	commission string
	delivery   string
	tax        string
}

func (f rateFlags) calculator() (pricing.Calculator, error) {
	r := pricing.DefaultRates()
	for _, item := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"commission", f.commission, &r.Commission},
		{"delivery", f.delivery, &r.DeliveryFee},
		{"tax", f.tax, &r.Tax},
	} {
		if strings.TrimSpace(item.raw) == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(item.raw))
		if err != nil || d.IsNegative() {
			return pricing.Calculator{}, fmt.Errorf("invalid --%s %q", item.name, item.raw)
		}
		*item.dst = d
	}
	return pricing.NewCalculator(r), nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	var rates rateFlags
	root := &cobra.Command{
		Use:   "pricecalc",
		Short: "Compute B2B market prices from seller prices",
		Long: `pricecalc applies the platform commission, delivery fee and tax to
seller prices.

Examples:
  pricecalc market 250
  pricecalc tiers --price 1-5=250 --price 5-10=230 --qty 7`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&rates.commission, "commission", "", "commission rate (default 0.05)")
	root.PersistentFlags().StringVar(&rates.delivery, "delivery", "", "flat delivery fee (default 20)")
	root.PersistentFlags().StringVar(&rates.tax, "tax", "", "tax rate (default 0.18)")

	root.AddCommand(newMarketCmd(&rates), newTiersCmd(&rates))
	return root
}

func newMarketCmd(rates *rateFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "market <seller-price>",
		Short: "Print the market price breakdown for one seller price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := rates.calculator()
			if err != nil {
				return err
			}
			b := calc.Breakdown(pricing.ParseSellerPrice(args[0]))
			rows := [][2]string{
				{"seller", pricing.FormatPrice(b.Seller)},
				{"commission", pricing.FormatPrice(b.Commission)},
				{"delivery", pricing.FormatPrice(b.Delivery)},
				{"subtotal", pricing.FormatPrice(b.Subtotal)},
				{"tax", pricing.FormatPrice(b.Tax)},
				{"market", pricing.FormatPrice(b.Market)},
			}
			if asJSON {
				obj := make(map[string]string, len(rows))
				for _, r := range rows {
					obj[r[0]] = r[1]
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(obj)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t\n", r[0], r[1])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newTiersCmd(rates *rateFlags) *cobra.Command {
	var prices []string
	var qty int
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the tier summary for a set of range=price pairs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			calc, err := rates.calculator()
			if err != nil {
				return err
			}
			m := tiers.Init(calc)
			for _, p := range prices {
				label, raw, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --price %q, want range=price", p)
				}
				r, err := tiers.ParseRange(strings.TrimSpace(label))
				if err != nil {
					return err
				}
				if m, err = m.SetSellerPrice(r, raw); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANGE\tSELLER\tMARKET")
			for _, t := range m.Summarize() {
				seller, market := t.SellerPrice, t.MarketPrice
				if !t.IsSet() {
					seller, market = "-", "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Range, seller, market)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if qty == 0 {
				return nil
			}
			t, unit, err := m.UnitPriceFor(qty)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "quote: %d x %s (%s) = %s\n", qty, pricing.FormatPrice(unit), t.Range, pricing.FormatPrice(pricing.OrderTotal(unit, qty)))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&prices, "price", nil, "seller price for a range, e.g. 1-5=250 (repeatable)")
	cmd.Flags().IntVar(&qty, "qty", 0, "also quote this order quantity")
	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
