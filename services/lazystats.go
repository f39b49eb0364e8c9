package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"radiovespa/models"
	"radiovespa/utils"
)

// ReviewSource returns the most recent reviews for a listing, newest first.
type ReviewSource interface {
	Recent(ctx context.Context, listingID string, limit int) ([]models.Review, error)
}

// Visibility is implemented by any rendering surface that can tell when a
// region becomes visible. onVisible fires at most once per registration;
// stop unregisters and is safe to call after firing.
type Visibility interface {
	Observe(regionID string, onVisible func()) (stop func())
}

// VisibilityTracker is a one-shot Visibility fed by explicit Notify calls,
// for example from a browser reporting an intersection.
type VisibilityTracker struct {
	mu      sync.Mutex
	nextID  uint64
	waiters map[string]map[uint64]func()
}

// NewVisibilityTracker creates an empty tracker.
func NewVisibilityTracker() *VisibilityTracker {
	return &VisibilityTracker{waiters: make(map[string]map[uint64]func())}
}

func (v *VisibilityTracker) Observe(regionID string, onVisible func()) (stop func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	id := v.nextID
	if v.waiters[regionID] == nil {
		v.waiters[regionID] = make(map[uint64]func())
	}
	v.waiters[regionID][id] = onVisible

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.remove(regionID, id)
	}
}

// Notify reports regionID as visible, firing and unregistering its observers.
// It returns how many observers fired.
func (v *VisibilityTracker) Notify(regionID string) int {
	v.mu.Lock()
	fns := v.waiters[regionID]
	delete(v.waiters, regionID)
	v.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of registered observers for regionID.
func (v *VisibilityTracker) Pending(regionID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.waiters[regionID])
}

func (v *VisibilityTracker) remove(regionID string, id uint64) {
	m := v.waiters[regionID]
	delete(m, id)
	if len(m) == 0 {
		delete(v.waiters, regionID)
	}
}

// StatsLoader fetches a listing's review aggregate at most once per session
// and keeps it in memory until Reset.
type StatsLoader struct {
	source  ReviewSource
	logger  *utils.Logger
	timeout time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	gen   uint64
	idGen map[string]uint64
	stats map[string]models.ReviewStats
}

// NewStatsLoader creates a loader reading from source.
func NewStatsLoader(source ReviewSource, logger *utils.Logger) *StatsLoader {
	return &StatsLoader{
		source:  source,
		logger:  logger,
		timeout: 5 * time.Second,
		idGen:   make(map[string]uint64),
		stats:   make(map[string]models.ReviewStats),
	}
}

// Cached returns the aggregate for id if it has been loaded.
func (s *StatsLoader) Cached(id string) (models.ReviewStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[id]
	return st, ok
}

// Load returns the aggregate for id, fetching it on first use. Concurrent
// callers share one fetch. A failed fetch is logged and cached as the zero
// aggregate. A fetch overtaken by Invalidate or Reset is returned to its
// callers but not cached.
func (s *StatsLoader) Load(ctx context.Context, id string) models.ReviewStats {
	if st, ok := s.Cached(id); ok {
		return st
	}

	v, _, _ := s.group.Do(id, func() (any, error) {
		s.mu.RLock()
		st, ok := s.stats[id]
		gen, idGen := s.gen, s.idGen[id]
		s.mu.RUnlock()
		if ok {
			return st, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		st = models.ReviewStats{TagsCount: map[string]int{}}
		reviews, err := s.source.Recent(fetchCtx, id, RecentReviewLimit)
		if err != nil {
			s.logger.Error("[stats] Loading reviews for %s failed: %v", id, err)
		} else {
			st = AggregateReviews(reviews)
		}

		s.mu.Lock()
		if s.gen == gen && s.idGen[id] == idGen {
			s.stats[id] = st
		}
		s.mu.Unlock()
		return st, nil
	})
	return v.(models.ReviewStats)
}

// Watch loads id's aggregate the first time its region becomes visible.
// The returned stop function unregisters the observer.
func (s *StatsLoader) Watch(v Visibility, id string) (stop func()) {
	if _, ok := s.Cached(id); ok {
		return func() {}
	}
	return v.Observe(id, func() {
		s.Load(context.Background(), id)
	})
}

// Invalidate drops the cached aggregate for id. A fetch for id already in
// flight is not cached when it lands; the next Load fetches again.
func (s *StatsLoader) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, id)
	s.idGen[id]++
	s.group.Forget(id)
}

// Reset drops every cached aggregate. In-flight fetches started before the
// reset do not repopulate the cache.
func (s *StatsLoader) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.idGen = make(map[string]uint64)
	s.stats = make(map[string]models.ReviewStats)
}

// Len returns how many aggregates are cached.
func (s *StatsLoader) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stats)
}
