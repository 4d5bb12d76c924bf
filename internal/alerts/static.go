package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/dilshanwn/movie-tickets-notifier/internal/config"
)

// StaticStore serves a fixed watch list from configuration, for deployments
// without a database. Every movie is watched on every configured date with
// all configured experiences; with no dates the default (tomorrow) applies
// and moves forward with the clock.
type StaticStore struct {
	watch config.WatchConfig
	home  string
	dates []time.Time
	now   func() time.Time
}

func NewStaticStore(w config.WatchConfig, homeLocation string) (*StaticStore, error) {
	if len(w.MovieIDs) == 0 && len(w.MovieNames) == 0 {
		return nil, errors.New("static watch list: set WATCH_MOVIE_IDS or WATCH_MOVIE_NAMES")
	}
	if w.Email == "" {
		return nil, errors.New("static watch list: WATCH_EMAIL required")
	}
	s := &StaticStore{watch: w, home: homeLocation, now: time.Now}
	for _, d := range w.Dates {
		t, err := ParseDate(d)
		if err != nil {
			return nil, err
		}
		s.dates = append(s.dates, t)
	}
	return s, nil
}

func (s *StaticStore) ActiveByName(ctx context.Context) ([]Alert, error) {
	return s.build(s.watch.MovieNames, func(a *Alert, v string) { a.MovieName = v }), nil
}

func (s *StaticStore) ActiveByID(ctx context.Context) ([]Alert, error) {
	return s.build(s.watch.MovieIDs, func(a *Alert, v string) { a.MovieID = v }), nil
}

func (s *StaticStore) build(movies []string, set func(*Alert, string)) []Alert {
	now := s.now()
	dates := s.dates
	if len(dates) == 0 {
		dates = []time.Time{{}}
	}

	var out []Alert
	for _, m := range movies {
		for _, d := range dates {
			a := Alert{
				Email:       s.watch.Email,
				Location:    s.watch.Location,
				Experiences: append([]string(nil), s.watch.Experiences...),
				Date:        d,
				Active:      true,
			}
			set(&a, m)
			a.ApplyDefaults(s.home, now)
			if a.Validate() != nil {
				continue
			}
			out = append(out, a)
		}
	}
	return out
}
