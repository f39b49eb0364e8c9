package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"radiovespa/storage"
)

var flagExportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write today's rotation as a feed-format CSV",
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

		w, err := storage.NewCSVWriter(flagExportOut)
		if err != nil {
			return err
		}
		if err := w.WriteListings(listings); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", flagExportOut, err)
		}

		fmt.Printf("Exported %d listings (seed %d) → %s\n", len(listings), seed, flagExportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagExportOut, "out", "./output/vespas.csv", "CSV output path")
}
