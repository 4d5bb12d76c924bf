package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
	"github.com/dilshanwn/movie-tickets-notifier/internal/notify"
	"github.com/dilshanwn/movie-tickets-notifier/internal/screening"
)

type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type State string

const (
	StateCompleted   State = "completed"
	StateTokenFailed State = "token_failed"
	StateSkipped     State = "skipped"
)

// Notification records one send attempt.
type Notification struct {
	AlertID int64           `json:"alert_id"`
	Email   string          `json:"email"`
	MovieID string          `json:"movie_id"`
	Match   screening.Match `json:"match"`
	Error   string          `json:"error,omitempty"`
}

type RunResult struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration"`
	NameAlerts  int            `json:"name_alerts"`
	IDAlerts    int            `json:"id_alerts"`
	Combined    int            `json:"combined"`
	Matches     int            `json:"matches"`
	Sent        int            `json:"sent"`
	Failed      int            `json:"failed"`
	AlertErrors int            `json:"alert_errors"`
	Sends       []Notification `json:"sends,omitempty"`
}

// Runner performs one matching pass: token, alerts, combine, match, notify.
type Runner struct {
	Tokens   TokenProvider
	Store    alerts.Store
	Combiner *screening.Combiner
	Matcher  *screening.Matcher
	Notifier notify.Notifier
}

func (r *Runner) Run(ctx context.Context) (res RunResult) {
	res = RunResult{ID: uuid.NewString(), StartedAt: time.Now()}
	log := logging.Component("runner").With().Str("run_id", res.ID).Logger()
	defer func() {
		res.Duration = time.Since(res.StartedAt)
		metrics.Runs.WithLabelValues(string(res.State)).Inc()
		metrics.RunDuration.Observe(res.Duration.Seconds())
	}()

	token, err := r.Tokens.Token(ctx)
	if err != nil {
		log.Error().Err(err).Msg("access token unavailable, run aborted")
		res.State = StateTokenFailed
		return res
	}
	st := screening.NewRunState(token)

	byName, err := r.Store.ActiveByName(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loading by-name alerts failed")
		byName = nil
	}
	byID, err := r.Store.ActiveByID(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loading by-id alerts failed")
		byID = nil
	}
	res.NameAlerts, res.IDAlerts = len(byName), len(byID)

	combined := r.Combiner.Combine(ctx, st, byName, byID)
	res.Combined = len(combined)

	for _, a := range combined {
		if err := r.processAlert(ctx, log, st, a, &res); err != nil {
			res.AlertErrors++
			log.Error().Err(err).Int64("alert_id", a.ID).Str("movie_id", a.MovieID).Msg("alert processing failed")
		}
	}

	res.State = StateCompleted
	log.Info().
		Int("alerts", res.Combined).
		Int("screenings", st.Processed()).
		Int("matches", res.Matches).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Dur("took", time.Since(res.StartedAt)).
		Msg("run complete")
	return res
}

func (r *Runner) processAlert(ctx context.Context, log zerolog.Logger, st *screening.RunState, a alerts.Alert, res *RunResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	matches := r.Matcher.MatchAlert(ctx, st, a)
	res.Matches += len(matches)

	for _, m := range matches {
		n := Notification{
			AlertID: a.ID,
			Email:   a.Email,
			MovieID: a.MovieID,
			Match:   m,
		}
		if err := r.Notifier.Send(ctx, a.Email, m); err != nil {
			res.Failed++
			n.Error = err.Error()
			log.Warn().Err(err).Int64("alert_id", a.ID).Str("theater", m.Theater.Name).Msg("notification failed")
		} else {
			res.Sent++
			log.Info().Int64("alert_id", a.ID).Str("theater", m.Theater.Name).Str("experience", m.Experience.Name).Msg("notification sent")
		}
		res.Sends = append(res.Sends, n)
	}
	return nil
}
