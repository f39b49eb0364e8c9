package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"radiovespa/services"
	"radiovespa/storage"
)

var flagClicksSince time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print directory insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		listings, seed, err := cleanFeed(cmd, cfg, logger)
		if err != nil {
			return err
		}

		insights := services.NewInsightService(logger)
		insights.Print(insights.Generate(listings), seed)

		if flagClicksSince <= 0 {
			return nil
		}
		if err := cfg.RequireStore(); err != nil {
			return err
		}
		pg, err := storage.OpenPostgres(cmd.Context(), cfg.DSN())
		if err != nil {
			return fmt.Errorf("connecting to store: %w", err)
		}
		defer pg.Close()

		counts, err := pg.ClickCounts(cmd.Context(), time.Now().Add(-flagClicksSince))
		if err != nil {
			return err
		}
		printClicks(counts, flagClicksSince)
		return nil
	},
}

func init() {
	statsCmd.Flags().DurationVar(&flagClicksSince, "clicks-since", 0, "also show bot requests per listing within this window (e.g. 168h)")
}

func printClicks(counts map[int]int, window time.Duration) {
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	fmt.Printf("  Requests in the last %s\n", window)
	if len(ids) == 0 {
		fmt.Printf("  No requests\n\n")
		return
	}
	for _, id := range ids {
		fmt.Printf("  VESPA #%-6d %d\n", id, counts[id])
	}
	fmt.Println()
}
