package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dilshanwn/movie-tickets-notifier/internal/config"
	"github.com/dilshanwn/movie-tickets-notifier/internal/lock"
	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scheduler"
	"github.com/dilshanwn/movie-tickets-notifier/internal/web"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alert scheduler and the ops endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.runner(ctx, false)
			if err != nil {
				return err
			}

			locker, closeLock, err := buildLocker(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer closeLock()

			ws := &web.Server{}
			if a.db != nil {
				ws.Ready = a.db.Ping
			}

			s := &scheduler.Scheduler{
				Runner:   runner,
				Lock:     locker,
				Interval: cfg.PollInterval,
				OnResult: ws.Record,
			}
			go func() {
				if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logging.Error().Err(err).Msg("scheduler stopped")
				}
			}()

			return web.Start(ctx, cfg.OpsAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

// buildLocker always serializes runs in-process and adds a Redis lock when
// REDIS_ADDR is set so replicas share one run per interval.
func buildLocker(ctx context.Context, rc config.RedisConfig) (lock.Locker, func(), error) {
	local := &lock.Local{}
	if rc.Addr == "" {
		return local, func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("addr", rc.Addr).Msg("using redis run lock")
	return lock.Chain{local, lock.NewRedis(client, "ticketwatch-run", rc.LockTTL)}, func() { _ = client.Close() }, nil
}
