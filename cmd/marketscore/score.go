package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/marketscore/internal/app"
	"github.com/alanyoungcy/marketscore/internal/domain"
)

var scoreKind string

var scoreCmd = &cobra.Command{
	Use:   "score <market>",
	Short: "Compute one report for a market and print it as JSON",
	Long: `Compute one report for a market id or BASE-QUOTE ticker.

Kinds: liquidity, volatility, volume, health, risk, summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

var compareCmd = &cobra.Command{
	Use:   "compare <market,market[,...]>",
	Short: "Compare 2-5 markets by health score and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

var (
	marketsStatus string
	marketsQuery  string
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List markets known to the indexer",
	Args:  cobra.NoArgs,
	RunE:  runMarkets,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreKind, "kind", string(domain.KindSummary), "report kind")
	marketsCmd.Flags().StringVar(&marketsStatus, "status", "", "only markets with this status")
	marketsCmd.Flags().StringVar(&marketsQuery, "q", "", "ticker substring filter")
	rootCmd.AddCommand(scoreCmd, compareCmd, marketsCmd)
}

// withDeps wires dependencies for a one-shot command. The live store is
// never fed here, so it is switched off.
func withDeps(ctx context.Context, fn func(*app.Dependencies) (any, error)) error {
	oneShot := *cfg
	oneShot.Live.Enabled = false

	deps, cleanup, err := app.Wire(ctx, &oneShot, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := fn(deps)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runScore(cmd *cobra.Command, args []string) error {
	kind, ok := domain.ParseMetricKind(scoreKind)
	if !ok {
		return fmt.Errorf("unknown kind %q", scoreKind)
	}
	return withDeps(cmd.Context(), func(d *app.Dependencies) (any, error) {
		return d.Scoring.Report(cmd.Context(), kind, args[0])
	})
}

func runCompare(cmd *cobra.Command, args []string) error {
	refs, err := domain.ParseMarketList(args[0])
	if err != nil {
		return err
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.Raw
	}
	return withDeps(cmd.Context(), func(d *app.Dependencies) (any, error) {
		return d.Scoring.Compare(cmd.Context(), ids)
	})
}

func runMarkets(cmd *cobra.Command, _ []string) error {
	return withDeps(cmd.Context(), func(d *app.Dependencies) (any, error) {
		markets, err := d.Markets.List(cmd.Context())
		if err != nil {
			return nil, err
		}
		q := strings.ToUpper(marketsQuery)
		out := make([]domain.Market, 0, len(markets))
		for _, m := range markets {
			if marketsStatus != "" && !strings.EqualFold(m.Status, marketsStatus) {
				continue
			}
			if q != "" && !strings.Contains(strings.ToUpper(m.Ticker), q) {
				continue
			}
			out = append(out, m)
		}
		return out, nil
	})
}
