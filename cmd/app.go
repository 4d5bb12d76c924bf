package cmd

import (
	"context"
	"fmt"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/config"
	"github.com/dilshanwn/movie-tickets-notifier/internal/db"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/migrate"
	"github.com/dilshanwn/movie-tickets-notifier/internal/notify"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scheduler"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
	"github.com/dilshanwn/movie-tickets-notifier/internal/screening"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

// app holds the long-lived dependencies of a command.
type app struct {
	cfg    config.Config
	db     *db.DB
	client *scope.Client
	tokens *scope.TokenSource
	store  alerts.Store
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func newScopeClient(cfg config.Config) (*scope.Client, *scope.TokenSource, error) {
	if err := cfg.ValidateScope(); err != nil {
		return nil, nil, err
	}
	client := scope.New(scope.Endpoints{
		BaseURL:        cfg.Scope.BaseURL,
		NowShowingPath: cfg.Scope.NowShowingPath,
		UpcomingPath:   cfg.Scope.UpcomingPath,
		ShowtimesPath:  cfg.Scope.ShowtimesPath,
		UserKey:        cfg.Scope.UserKey,
	}, scope.Options{
		Timeout:         cfg.Scope.HTTPTimeout,
		RatePerSec:      cfg.Scope.RatePerSec,
		BreakerFailures: cfg.Scope.BreakerFailures,
	})
	tokens := scope.NewTokenSource(cfg.Scope.TokenURL, cfg.Scope.ClientID, cfg.Scope.ClientSecret, client.HTTPClient())
	return client, tokens, nil
}

func openDB(ctx context.Context, cfg config.Config, migrateUp bool) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// newApp wires the upstream client and the alert store. Without DATABASE_URL
// the static WATCH_* list is used.
func newApp(ctx context.Context, cfg config.Config, migrateUp bool) (*app, error) {
	client, tokens, err := newScopeClient(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, client: client, tokens: tokens}

	if cfg.DatabaseURL == "" {
		s, err := alerts.NewStaticStore(cfg.Watch, cfg.HomeLocation)
		if err != nil {
			return nil, fmt.Errorf("no DATABASE_URL and %w", err)
		}
		logging.Info().Msg("using static watch list")
		a.store = s
		return a, nil
	}

	d, err := openDB(ctx, cfg, migrateUp)
	if err != nil {
		return nil, err
	}
	a.db = d
	a.store = alerts.NewRepo(d)
	return a, nil
}

func (a *app) notifier(ctx context.Context, dryRun bool) (notify.Notifier, error) {
	n := &notify.Email{SeatPlanDomain: a.cfg.Notifier.SeatPlanDomain}
	kind := a.cfg.Notifier.Kind
	if dryRun {
		kind = "log"
	}

	switch kind {
	case "log":
		n.Mailer = &notify.LogMailer{Log: logging.Component("mailer")}
	case "ses":
		m, err := notify.NewSESMailer(ctx, a.cfg.Notifier.SESRegion, a.cfg.Notifier.SESAccessKeyID, a.cfg.Notifier.SESSecretAccessKey, a.cfg.Notifier.SESFrom)
		if err != nil {
			return nil, err
		}
		n.Mailer = m
	default:
		n.Mailer = &notify.SMTPMailer{
			Host:     a.cfg.Notifier.SMTPHost,
			Port:     a.cfg.Notifier.SMTPPort,
			Username: a.cfg.Notifier.SMTPUsername,
			Password: a.cfg.Notifier.SMTPPassword,
			From:     a.cfg.Notifier.SMTPFrom,
		}
	}
	return n, nil
}

func (a *app) runner(ctx context.Context, dryRun bool) (*scheduler.Runner, error) {
	n, err := a.notifier(ctx, dryRun)
	if err != nil {
		return nil, err
	}
	return &scheduler.Runner{
		Tokens:   a.tokens,
		Store:    a.store,
		Combiner: screening.NewCombiner(screening.NewResolver(a.client)),
		Matcher:  screening.NewMatcher(a.client),
		Notifier: n,
	}, nil
}
