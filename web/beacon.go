package web

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"radiovespa/utils"
)

// Beacon reports contact clicks to an external counter with a fire-and-forget
// GET to "<url>?id=<listing id>". Failures are only logged.
type Beacon struct {
	url     string
	client  *http.Client
	pool    *utils.WorkerPool
	logger  *utils.Logger
	timeout time.Duration
}

// NewBeacon creates a Beacon. An empty url disables it.
func NewBeacon(endpoint string, timeout time.Duration, workers int, logger *utils.Logger) *Beacon {
	b := &Beacon{
		url:     endpoint,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
	if endpoint != "" {
		b.pool = utils.NewWorkerPool(workers, workers*16)
	}
	return b
}

// Fire queues a click report for id. It reports false when the beacon is
// disabled or saturated.
func (b *Beacon) Fire(id string) bool {
	if b.pool == nil {
		return false
	}
	target := b.url + "?id=" + url.QueryEscape(id)
	ok := b.pool.TrySubmit(func() { b.send(target) })
	if !ok {
		b.logger.Warn("[beacon] Queue full, dropping click for %s", id)
	}
	return ok
}

func (b *Beacon) send(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		b.logger.Warn("[beacon] Bad request: %v", err)
		return
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("[beacon] Click report failed: %v", err)
		return
	}
	resp.Body.Close()
}

// Close waits for queued reports.
func (b *Beacon) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}
