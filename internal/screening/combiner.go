package screening

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
)

type Combiner struct {
	resolver *Resolver
	log      zerolog.Logger
}

func NewCombiner(r *Resolver) *Combiner {
	return &Combiner{resolver: r, log: logging.Component("combiner")}
}

// Combine turns every by-name alert into one by-id alert per resolved movie
// and appends the native by-id alerts. Derived alerts come first. Inactive
// or malformed alerts are skipped; an unresolved name or a failure while
// resolving drops that alert for this run only.
func (c *Combiner) Combine(ctx context.Context, st *RunState, byName, byID []alerts.Alert) []alerts.Alert {
	var out []alerts.Alert

	for _, a := range byName {
		if !a.Active {
			continue
		}
		derived, err := c.expand(ctx, st, a)
		if err != nil {
			metrics.AlertsDropped.Inc()
			c.log.Error().Err(err).Int64("alert_id", a.ID).Str("movie_name", a.MovieName).Msg("resolving alert failed, skipped this run")
			continue
		}
		out = append(out, derived...)
	}

	for _, a := range byID {
		if !a.Active {
			continue
		}
		out = append(out, a)
	}
	return out
}

// expand resolves one by-name alert. A panic while resolving becomes an error
// for that alert alone.
func (c *Combiner) expand(ctx context.Context, st *RunState, a alerts.Alert) (out []alerts.Alert, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	if a.MovieName == "" {
		c.log.Warn().Int64("alert_id", a.ID).Msg("by-name alert without a movie name")
		return nil, nil
	}
	ids := ResolveIDs([]string{a.MovieName}, st.Catalog(ctx, c.resolver))
	if len(ids) == 0 {
		metrics.AlertsDropped.Inc()
		c.log.Info().Int64("alert_id", a.ID).Str("movie_name", a.MovieName).Msg("no catalog match, alert skipped this run")
		return nil, nil
	}
	for _, id := range ids {
		out = append(out, a.WithMovieID(id))
	}
	return out, nil
}
