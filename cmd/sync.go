package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"radiovespa/storage"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy listings from the feed into PostgreSQL for the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if err := cfg.RequireStore(); err != nil {
			return err
		}

		listings, _, err := cleanFeed(cmd, cfg, logger)
		if err != nil {
			return err
		}

		pg, err := storage.OpenPostgres(cmd.Context(), cfg.DSN())
		if err != nil {
			return fmt.Errorf("connecting to store: %w", err)
		}
		defer pg.Close()

		var writer storage.ListingWriter = pg
		n, err := writer.UpsertListings(cmd.Context(), listings)
		if err != nil {
			return fmt.Errorf("upserting listings (%d written): %w", n, err)
		}
		logger.Info("Synced %d of %d listings into table vespas", n, len(listings))
		if skipped := len(listings) - n; skipped > 0 {
			logger.Warn("%d listings skipped: the bot only resolves numeric ids", skipped)
		}
		return nil
	},
}
