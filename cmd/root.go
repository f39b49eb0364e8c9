package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"radiovespa/config"
	"radiovespa/feed"
	"radiovespa/models"
	"radiovespa/services"
	"radiovespa/utils"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagEnv      string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "radiovespa",
	Short:         "Directory of local transport vans with a WhatsApp request bot",
	Long:          "radiovespa serves the daily-rotated Vespa directory and runs the WhatsApp bot that forwards /solicitar requests to their owners.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", ".env", "path to the dotenv file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(probeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("radiovespa %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load(flagEnv)
	if err != nil {
		return nil, nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = strings.ToLower(flagLogLevel)
	}
	logger, err := utils.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newDirectory wires the feed, cleaner and optional stats loader.
func newDirectory(cfg *config.Config, stats *services.StatsLoader, logger *utils.Logger) *services.Directory {
	loader := feed.NewLoader(cfg.FeedURL, cfg.FetchTimeout(), logger.Named("feed"))
	return services.NewDirectory(loader, services.NewCleaner(logger), stats, logger)
}

// cleanFeed loads the feed once and returns today's cleaned rotation.
func cleanFeed(cmd *cobra.Command, cfg *config.Config, logger *utils.Logger) ([]models.Listing, uint32, error) {
	loader := feed.NewLoader(cfg.FeedURL, cfg.FetchTimeout(), logger.Named("feed"))
	raw, err := loader.Load(cmd.Context())
	if err != nil {
		return nil, 0, fmt.Errorf("loading feed: %w", err)
	}
	clean := services.NewCleaner(logger).Clean(raw)
	seed := services.DailySeed(time.Now())
	return services.SeededShuffle(clean, seed), seed, nil
}
