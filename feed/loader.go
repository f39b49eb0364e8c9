package feed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"radiovespa/models"
	"radiovespa/utils"
)

//go:embed data/vespas.json
var defaultListings []byte

// maxFeedBytes bounds how much of a remote feed is read.
const maxFeedBytes = 4 << 20

// Loader fetches the listing feed from a URL, or the bundled sample when no
// URL is configured. The payload may be a JSON array or a CSV sheet.
type Loader struct {
	url    string
	client *http.Client
	logger *utils.Logger
}

// NewLoader creates a Loader. An empty url selects the bundled data.
func NewLoader(url string, timeout time.Duration, logger *utils.Logger) *Loader {
	return &Loader{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Load returns the raw listings from the configured source.
func (l *Loader) Load(ctx context.Context) ([]models.Listing, error) {
	if l.url == "" {
		l.logger.Debug("[feed] No external feed configured, using bundled listings")
		return Decode(defaultListings)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", l.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch %s: status %d", l.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("feed: read body: %w", err)
	}

	listings, err := Decode(body)
	if err != nil {
		return nil, err
	}
	l.logger.Info("[feed] Fetched %d listings from %s", len(listings), l.url)
	return listings, nil
}

// Decode parses a JSON array of listings, falling back to CSV when the
// payload is not valid JSON.
func Decode(body []byte) ([]models.Listing, error) {
	var listings []models.Listing
	if err := json.Unmarshal(body, &listings); err == nil {
		if listings == nil {
			listings = []models.Listing{}
		}
		return listings, nil
	}

	listings, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feed: payload is neither JSON nor CSV: %w", err)
	}
	return listings, nil
}
