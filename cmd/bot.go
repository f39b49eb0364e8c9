package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"radiovespa/bot"
	"radiovespa/storage"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the WhatsApp request bot",
	Long: `Connect to WhatsApp as a linked device and answer "/solicitar <id>" messages.

On first run a QR code is printed; scan it from WhatsApp > Linked devices.
Device credentials are kept in the same PostgreSQL database as the listings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		if err := cfg.RequireStore(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pg, err := storage.OpenPostgres(ctx, cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			return fmt.Errorf("connecting to store: %w", err)
		}
		defer pg.Close()

		session, err := bot.OpenSession(ctx, cfg.DSN(), cfg.ReconnectAttempts, logger.Named("session"))
		if err != nil {
			return err
		}
		defer session.Close()

		dispatcher := bot.NewDispatcher(pg, session, cfg.CountryCode, logger.Named("dispatcher"))

		logger.Info("=== RadioVespa bot starting ===")
		err = session.Run(ctx, dispatcher.Handle)
		if errors.Is(err, bot.ErrLoggedOut) {
			logger.Error("Session logged out; run the bot again to pair a new device")
		}
		return err
	},
}
