package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/lock"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
	"github.com/dilshanwn/movie-tickets-notifier/internal/screening"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeStore struct {
	byName, byID       []alerts.Alert
	nameErr, idErr     error
	nameCalls, idCalls int
}

func (f *fakeStore) ActiveByName(ctx context.Context) ([]alerts.Alert, error) {
	f.nameCalls++
	return f.byName, f.nameErr
}

func (f *fakeStore) ActiveByID(ctx context.Context) ([]alerts.Alert, error) {
	f.idCalls++
	return f.byID, f.idErr
}

type fakeSource struct {
	mu         sync.Mutex
	movies     []scope.Movie
	catalogErr error
	theaters   map[string][]scope.Theater
	calls      int
}

func (f *fakeSource) NowShowing(ctx context.Context, token string) ([]scope.Movie, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.movies, nil
}

func (f *fakeSource) Upcoming(ctx context.Context, token string) ([]scope.Movie, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return nil, nil
}

func (f *fakeSource) Showtimes(ctx context.Context, token, movieID, date string) ([]scope.Theater, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.theaters[movieID+"|"+date], nil
}

type sent struct {
	to    string
	match screening.Match
}

type fakeNotifier struct {
	sent    []sent
	failFor map[string]bool
	panicOn map[string]bool
}

func (f *fakeNotifier) Send(ctx context.Context, to string, m screening.Match) error {
	if f.panicOn[to] {
		panic("template exploded")
	}
	if f.failFor[to] {
		return errors.New("smtp 550")
	}
	f.sent = append(f.sent, sent{to: to, match: m})
	return nil
}

var june1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func duneSource() *fakeSource {
	return &fakeSource{
		movies: []scope.Movie{{ID: "42", Name: "Dune Part Two"}},
		theaters: map[string][]scope.Theater{
			"42|2024-06-01": {{
				Name:      "Scope Colombo City",
				MovieName: "Dune Part Two",
				VistaCode: scope.VistaCodes{"HCM"},
				Experiences: []scope.Experience{{
					Name:      "Digital 2D",
					Showtimes: []scope.Showtime{{ID: 7, Name: "10:30 AM", CinemaID: "0001"}},
				}},
			}},
		},
	}
}

func newRunner(tokens *fakeTokens, store *fakeStore, src *fakeSource, n *fakeNotifier) *Runner {
	return &Runner{
		Tokens:   tokens,
		Store:    store,
		Combiner: screening.NewCombiner(screening.NewResolver(src)),
		Matcher:  screening.NewMatcher(src),
		Notifier: n,
	}
}

func nameAlert(id int64, email, name string) alerts.Alert {
	return alerts.Alert{ID: id, Email: email, MovieName: name, Location: "HCM", Experiences: []string{"Digital"}, Date: june1, Active: true}
}

func idAlert(id int64, email, movieID string) alerts.Alert {
	return alerts.Alert{ID: id, Email: email, MovieID: movieID, Location: "HCM", Experiences: []string{"Digital"}, Date: june1, Active: true}
}

func TestRunEndToEnd(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}
	store := &fakeStore{byName: []alerts.Alert{nameAlert(1, "me@example.com", "Dune")}}

	res := newRunner(&fakeTokens{token: "tok"}, store, src, n).Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, res.Matches)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "me@example.com", n.sent[0].to)
	assert.Equal(t, "Digital 2D", n.sent[0].match.Experience.Name)
	assert.Equal(t, 1, src.calls)
	require.Len(t, res.Sends, 1)
	assert.Equal(t, "42", res.Sends[0].MovieID)
}

func TestRunTokenFailureAborts(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}
	store := &fakeStore{byID: []alerts.Alert{idAlert(1, "me@example.com", "42")}}

	res := newRunner(&fakeTokens{err: errors.New("401")}, store, src, n).Run(context.Background())

	assert.Equal(t, StateTokenFailed, res.State)
	assert.Zero(t, store.nameCalls+store.idCalls)
	assert.Zero(t, src.calls)
	assert.Empty(t, n.sent)
}

func TestRunNoAlerts(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}

	res := newRunner(&fakeTokens{token: "tok"}, &fakeStore{}, src, n).Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Zero(t, src.calls)
	assert.Empty(t, n.sent)
}

func TestRunDuplicateTupleNotifiesOnce(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}
	store := &fakeStore{
		byName: []alerts.Alert{nameAlert(1, "a@example.com", "dune")},
		byID:   []alerts.Alert{idAlert(2, "b@example.com", "42")},
	}

	res := newRunner(&fakeTokens{token: "tok"}, store, src, n).Run(context.Background())

	assert.Equal(t, 1, src.calls)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "a@example.com", n.sent[0].to)
	assert.Equal(t, 2, res.Combined)
}

func TestRunStoreErrorContinues(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}
	store := &fakeStore{
		nameErr: errors.New("db down"),
		byID:    []alerts.Alert{idAlert(2, "b@example.com", "42")},
	}

	res := newRunner(&fakeTokens{token: "tok"}, store, src, n).Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Len(t, n.sent, 1)
}

func TestRunCatalogFailureDropsNameAlerts(t *testing.T) {
	src := duneSource()
	src.catalogErr = errors.New("catalog 500")
	n := &fakeNotifier{}
	store := &fakeStore{byName: []alerts.Alert{nameAlert(1, "me@example.com", "Dune")}}

	res := newRunner(&fakeTokens{token: "tok"}, store, src, n).Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Zero(t, res.Combined)
	assert.Zero(t, src.calls)
	assert.Empty(t, n.sent)
}

func TestRunIsolatesSendFailuresAndPanics(t *testing.T) {
	src := duneSource()
	src.theaters["42|2024-06-02"] = src.theaters["42|2024-06-01"]
	src.theaters["42|2024-06-03"] = src.theaters["42|2024-06-01"]

	a1 := idAlert(1, "fail@example.com", "42")
	a2 := idAlert(2, "panic@example.com", "42")
	a2.Date = june1.AddDate(0, 0, 1)
	a3 := idAlert(3, "ok@example.com", "42")
	a3.Date = june1.AddDate(0, 0, 2)

	n := &fakeNotifier{
		failFor: map[string]bool{"fail@example.com": true},
		panicOn: map[string]bool{"panic@example.com": true},
	}
	store := &fakeStore{byID: []alerts.Alert{a1, a2, a3}}

	res := newRunner(&fakeTokens{token: "tok"}, store, src, n).Run(context.Background())

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.AlertErrors)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "ok@example.com", n.sent[0].to)
}

func TestRunStartsFreshEachTime(t *testing.T) {
	src := duneSource()
	n := &fakeNotifier{}
	store := &fakeStore{byID: []alerts.Alert{idAlert(1, "me@example.com", "42")}}
	r := newRunner(&fakeTokens{token: "tok"}, store, src, n)

	r.Run(context.Background())
	r.Run(context.Background())

	assert.Equal(t, 2, src.calls)
	assert.Len(t, n.sent, 2)
}

type heldLock struct{}

func (heldLock) TryLock(ctx context.Context) (func(), error) { return nil, lock.ErrNotAcquired }

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	s := &Scheduler{
		Runner: newRunner(tokens, &fakeStore{}, duneSource(), &fakeNotifier{}),
		Lock:   heldLock{},
	}

	res := s.RunOnce(context.Background())
	assert.Equal(t, StateSkipped, res.State)
	assert.Zero(t, tokens.calls)
}

func TestRunOnceReleasesLock(t *testing.T) {
	var l lock.Local
	s := &Scheduler{
		Runner: newRunner(&fakeTokens{token: "tok"}, &fakeStore{}, duneSource(), &fakeNotifier{}),
		Lock:   &l,
	}

	assert.Equal(t, StateCompleted, s.RunOnce(context.Background()).State)
	assert.Equal(t, StateCompleted, s.RunOnce(context.Background()).State)
}

func TestSchedulerRunKicksImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan RunResult, 8)
	s := &Scheduler{
		Runner:   newRunner(&fakeTokens{token: "tok"}, &fakeStore{}, duneSource(), &fakeNotifier{}),
		Lock:     &lock.Local{},
		Interval: time.Hour,
		OnResult: func(r RunResult) { results <- r },
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case r := <-results:
		assert.Equal(t, StateCompleted, r.State)
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate run")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
