package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"radiovespa/probe"
)

var (
	flagProbeURL      string
	flagProbeAttempts int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Load the front-end in headless Chrome and check the lazy stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		url := flagProbeURL
		if url == "" {
			url = localURL(cfg.HTTPAddr)
		}

		report, err := probe.New(probe.Options{
			URL:      url,
			Attempts: flagProbeAttempts,
			Timeout:  cfg.FetchTimeout() * 8,
		}, logger.Named("probe")).Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(report.String())
		if !report.Complete() {
			return fmt.Errorf("stats loaded for %d of %d cards", report.WithStats, report.Cards)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&flagProbeURL, "url", "", "front-end URL (default: local HTTP_ADDR)")
	probeCmd.Flags().IntVar(&flagProbeAttempts, "attempts", 3, "navigation attempts")
}

// localURL turns a listen address such as ":8080" into a browsable URL.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}
