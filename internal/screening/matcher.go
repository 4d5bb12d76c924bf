package screening

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
)

// Match is one theater showing the movie in a wanted experience.
type Match struct {
	Theater    scope.Theater
	Experience scope.Experience
}

type Matcher struct {
	src Source
	log zerolog.Logger
}

func NewMatcher(src Source) *Matcher {
	return &Matcher{src: src, log: logging.Component("matcher")}
}

// Lookup returns the screenings of movieID on date whose experience name
// contains experience, ignoring case. Results are cached in st without
// location; an upstream failure yields nothing and leaves the cache alone.
func (m *Matcher) Lookup(ctx context.Context, st *RunState, movieID, date, experience string) []Match {
	key := lookupKey(movieID, date, experience)
	if hit, ok := st.cachedLookup(key); ok {
		metrics.ScreeningCache.WithLabelValues("hit").Inc()
		return hit
	}

	theaters, cached, err := st.showtimes(movieID, date, func() ([]scope.Theater, error) {
		return m.src.Showtimes(ctx, st.Token, movieID, date)
	})
	if err != nil {
		m.log.Warn().Err(err).Str("movie_id", movieID).Str("date", date).Msg("showtimes lookup failed")
		return nil
	}
	if cached {
		metrics.ScreeningCache.WithLabelValues("hit").Inc()
	} else {
		metrics.ScreeningCache.WithLabelValues("miss").Inc()
	}

	want := strings.ToLower(experience)
	var out []Match
	for _, th := range theaters {
		for _, exp := range th.Experiences {
			if strings.Contains(strings.ToLower(exp.Name), want) {
				out = append(out, Match{Theater: th, Experience: exp})
			}
		}
	}
	st.storeLookup(key, out)
	return out
}

// MatchAlert runs every experience of a by-id alert in order. A screening key
// already handled in this run is skipped, so each (movie, location, date,
// experience) yields matches once per run no matter how many alerts share it.
func (m *Matcher) MatchAlert(ctx context.Context, st *RunState, a alerts.Alert) []Match {
	if !a.Active || a.MovieID == "" {
		return nil
	}
	date := a.Day()

	var out []Match
	for _, exp := range a.Experiences {
		key := CreateKey(a.MovieID, a.Location, date, exp)
		if !st.MarkProcessed(key) {
			m.log.Debug().Str("key", key).Int64("alert_id", a.ID).Msg("screening already processed")
			continue
		}
		for _, match := range m.Lookup(ctx, st, a.MovieID, date, exp) {
			if match.Theater.VistaCode.Contains(a.Location) {
				out = append(out, match)
			}
		}
	}
	return out
}
