package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"radiovespa/services"
	"radiovespa/storage"
	"radiovespa/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the directory web front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		reviews, err := storage.OpenReviews(cfg.ReviewsDBPath)
		if err != nil {
			return fmt.Errorf("opening reviews: %w", err)
		}
		defer reviews.Close()

		stats := services.NewStatsLoader(reviews, logger.Named("stats"))
		dir := newDirectory(cfg, stats, logger.Named("directory"))

		srv, err := web.NewServer(web.Config{
			CountryCode:    cfg.CountryCode,
			BeaconURL:      cfg.ClickBeaconURL,
			BeaconWorkers:  cfg.BeaconWorkers,
			GeoCountry:     cfg.GeoCountry,
			GeoLookupURL:   cfg.GeoLookupURL,
			FetchTimeout:   cfg.FetchTimeout(),
			TrustedProxies: cfg.TrustedProxies,
		}, dir, stats, reviews, logger.Named("web"))
		if err != nil {
			return err
		}
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// warm today's rotation before accepting traffic
		all, seed := dir.Listings(ctx)
		logger.Info("=== RadioVespa web starting on %s (%d listings, seed %d) ===", cfg.HTTPAddr, len(all), seed)

		httpSrv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- httpSrv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}
