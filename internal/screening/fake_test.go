package screening

import (
	"context"
	"errors"
	"sync"

	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
)

type fakeSource struct {
	mu          sync.Mutex
	nowShowing  []scope.Movie
	upcoming    []scope.Movie
	catalogErr  error
	theaters    map[string][]scope.Theater // movieID|date
	failures    map[string]int             // movieID|date -> remaining failures
	catalogHits int
	calls       map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		theaters: make(map[string][]scope.Theater),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeSource) NowShowing(ctx context.Context, token string) ([]scope.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogHits++
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.nowShowing, nil
}

func (f *fakeSource) Upcoming(ctx context.Context, token string) ([]scope.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogHits++
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.upcoming, nil
}

func (f *fakeSource) Showtimes(ctx context.Context, token, movieID, date string) ([]scope.Theater, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := movieID + "|" + date
	f.calls[k]++
	if f.failures[k] > 0 {
		f.failures[k]--
		return nil, errors.New("upstream timeout")
	}
	return f.theaters[k], nil
}

func (f *fakeSource) callCount(movieID, date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[movieID+"|"+date]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func theater(name string, codes []string, experiences ...string) scope.Theater {
	th := scope.Theater{Name: name, VistaCode: codes, MovieName: "Dune Part Two"}
	for i, e := range experiences {
		th.Experiences = append(th.Experiences, scope.Experience{
			Name:      e,
			Showtimes: []scope.Showtime{{ID: 100 + i, Name: "10:30 AM", CinemaID: "0001"}},
		})
	}
	return th
}
