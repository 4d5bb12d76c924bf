package screening

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
)

// RunState is everything one matching run remembers: the access token, the
// catalog, upstream results and the keys already notified. A new run gets a
// new RunState; nothing carries over. Safe for concurrent use.
type RunState struct {
	Token string

	mu        sync.Mutex
	catalog   []CatalogEntry
	catalogOK bool
	lookups   map[string][]Match
	theaters  map[string][]scope.Theater
	processed map[string]struct{}

	fetches singleflight.Group
}

func NewRunState(token string) *RunState {
	return &RunState{
		Token:     token,
		lookups:   make(map[string][]Match),
		theaters:  make(map[string][]scope.Theater),
		processed: make(map[string]struct{}),
	}
}

// MarkProcessed records key and reports whether it was new.
func (s *RunState) MarkProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[key]; ok {
		return false
	}
	s.processed[key] = struct{}{}
	return true
}

// Processed returns the number of screening keys handled so far.
func (s *RunState) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// Catalog loads the catalog on first use and reuses it for the rest of the run.
func (s *RunState) Catalog(ctx context.Context, r *Resolver) []CatalogEntry {
	v, _, _ := s.fetches.Do("catalog", func() (any, error) {
		s.mu.Lock()
		if s.catalogOK {
			c := s.catalog
			s.mu.Unlock()
			return c, nil
		}
		s.mu.Unlock()

		c := r.FetchCatalog(ctx, s.Token)

		s.mu.Lock()
		s.catalog, s.catalogOK = c, true
		s.mu.Unlock()
		return c, nil
	})
	return v.([]CatalogEntry)
}

func (s *RunState) cachedLookup(key string) ([]Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lookups[key]
	return m, ok
}

func (s *RunState) storeLookup(key string, m []Match) {
	s.mu.Lock()
	s.lookups[key] = m
	s.mu.Unlock()
}

// showtimes returns the theaters for (movieID, date), calling fetch at most
// once per pair unless it fails. Failures are not remembered.
func (s *RunState) showtimes(movieID, date string, fetch func() ([]scope.Theater, error)) ([]scope.Theater, bool, error) {
	key := joinKey(movieID, date)

	s.mu.Lock()
	th, ok := s.theaters[key]
	s.mu.Unlock()
	if ok {
		return th, true, nil
	}

	v, err, _ := s.fetches.Do("showtimes:"+key, func() (any, error) {
		s.mu.Lock()
		th, ok := s.theaters[key]
		s.mu.Unlock()
		if ok {
			return th, nil
		}
		th, err := fetch()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.theaters[key] = th
		s.mu.Unlock()
		return th, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]scope.Theater), false, nil
}
