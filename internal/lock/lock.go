// Package lock keeps matching runs from overlapping, inside one process and
// optionally across processes through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
)

var ErrNotAcquired = errors.New("lock: held elsewhere")

// Locker hands out a release func on success and ErrNotAcquired when the
// lock is already taken. It never waits.
type Locker interface {
	TryLock(ctx context.Context) (release func(), err error)
}

// Local is an in-process lock.
type Local struct{ mu sync.Mutex }

func (l *Local) TryLock(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrNotAcquired
	}
	return l.mu.Unlock, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a SET NX lease keyed by name. Each acquisition gets its own owner
// token so a lease that expired and was taken over is never released by the
// old holder. While held, the lease is extended every ttl/3 so a run longer
// than ttl keeps it.
type Redis struct {
	client     *redis.Client
	key        string
	ttl        time.Duration
	renewEvery time.Duration
}

func NewRedis(client *redis.Client, name string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: "lock:" + name, ttl: ttl, renewEvery: ttl / 3}
}

func (r *Redis) TryLock(ctx context.Context) (func(), error) {
	owner := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, owner, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(owner, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{r.key}, owner).Err()
		})
	}, nil
}

// Extend resets the lease to ttl if owner still holds it and reports whether
// it did.
func (r *Redis) Extend(ctx context.Context, owner string) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{r.key}, owner, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", r.key, err)
	}
	return n == 1, nil
}

func (r *Redis) keepAlive(owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if r.renewEvery <= 0 {
		return
	}
	log := logging.Component("lock")
	t := time.NewTicker(r.renewEvery)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			held, err := r.Extend(ctx, owner)
			cancel()
			switch {
			case err != nil:
				log.Warn().Err(err).Str("key", r.key).Msg("lease renewal failed")
			case !held:
				log.Error().Str("key", r.key).Msg("lease lost before release")
				return
			}
		}
	}
}

// Chain takes every lock in order and gives them all back on release. If one
// cannot be taken the ones already held are released.
type Chain []Locker

func (c Chain) TryLock(ctx context.Context) (func(), error) {
	var held []func()
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range c {
		release, err := l.TryLock(ctx)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return releaseAll, nil
}

// NewRedisClient connects and pings; an unreachable server is an error.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
