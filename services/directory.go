package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"radiovespa/models"
	"radiovespa/utils"
)

// FeedLoader fetches the raw listing set.
type FeedLoader interface {
	Load(ctx context.Context) ([]models.Listing, error)
}

// feedRetryBackoff is how long a failed feed load is remembered before the
// next request may try again.
const feedRetryBackoff = 30 * time.Second

// Directory is the in-memory rotation for the current UTC day. The feed is
// loaded, cleaned and shuffled once per day; queries only subset that order.
// Loads run outside the lock and concurrent callers share a single one.
type Directory struct {
	feed    FeedLoader
	cleaner *Cleaner
	stats   *StatsLoader
	logger  *utils.Logger
	group   singleflight.Group

	mu       sync.Mutex
	now      func() time.Time
	backoff  time.Duration
	loaded   bool
	seed     uint32
	listings []models.Listing
	byID     map[string]int
	retryAt  time.Time
}

// NewDirectory wires a directory. stats may be nil.
func NewDirectory(feed FeedLoader, cleaner *Cleaner, stats *StatsLoader, logger *utils.Logger) *Directory {
	return &Directory{
		feed:    feed,
		cleaner: cleaner,
		stats:   stats,
		logger:  logger,
		now:     time.Now,
		backoff: feedRetryBackoff,
	}
}

// SetClock replaces the time source. Used by tests.
func (d *Directory) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// SetRetryBackoff changes how long a failed load holds off the next one.
func (d *Directory) SetRetryBackoff(backoff time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backoff = backoff
}

// Listings returns today's rotation. While a load is in flight callers keep
// getting the set already held. A failed load keeps the previous rotation (or
// an empty one) and is not retried until the backoff has passed.
func (d *Directory) Listings(ctx context.Context) ([]models.Listing, uint32) {
	d.mu.Lock()
	due := d.due(d.now())
	d.mu.Unlock()

	if due {
		ch := d.group.DoChan("reload", func() (any, error) {
			d.reload(context.WithoutCancel(ctx))
			return nil, nil
		})
		select {
		case <-ch:
		case <-ctx.Done():
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listings == nil {
		return []models.Listing{}, d.seed
	}
	return d.listings, d.seed
}

// Query applies f to today's rotation.
func (d *Directory) Query(ctx context.Context, f Filter) []models.Listing {
	all, _ := d.Listings(ctx)
	return ApplyFilter(all, f)
}

// Services lists the service names available in today's rotation.
func (d *Directory) Services(ctx context.Context) []string {
	all, _ := d.Listings(ctx)
	return ServiceOptions(all)
}

// Find looks a listing up by id.
func (d *Directory) Find(ctx context.Context, id string) (models.Listing, bool) {
	d.Listings(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.byID[id]
	if !ok {
		return models.Listing{}, false
	}
	return d.listings[i], true
}

// Seed returns the seed of the rotation currently held.
func (d *Directory) Seed() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seed
}

// due reports whether the rotation must be (re)built at now. Callers hold mu.
func (d *Directory) due(now time.Time) bool {
	if d.loaded && DailySeed(now) == d.seed {
		return false
	}
	return !now.Before(d.retryAt)
}

func (d *Directory) reload(ctx context.Context) {
	d.mu.Lock()
	now := d.now()
	if !d.due(now) {
		d.mu.Unlock()
		return
	}
	seed := DailySeed(now)
	d.mu.Unlock()

	raw, err := d.feed.Load(ctx)
	if err != nil {
		d.mu.Lock()
		d.retryAt = d.now().Add(d.backoff)
		retryAt := d.retryAt
		d.mu.Unlock()
		d.logger.Error("[directory] Loading listings failed, retrying after %s: %v", retryAt.Format(time.TimeOnly), err)
		return
	}

	clean := d.cleaner.Clean(raw)
	shuffled := SeededShuffle(clean, seed)

	byID := make(map[string]int, len(shuffled))
	for i, l := range shuffled {
		byID[l.ID] = i
	}

	d.mu.Lock()
	d.listings = shuffled
	d.byID = byID
	d.seed = seed
	d.loaded = true
	d.retryAt = time.Time{}
	d.mu.Unlock()

	if d.stats != nil {
		d.stats.Reset()
	}
	d.logger.Info("[directory] Loaded %d listings (seed %d)", len(shuffled), seed)
}
