package scope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
)

var ErrUpstream = errors.New("scope: upstream error")

type Endpoints struct {
	BaseURL        string
	NowShowingPath string
	UpcomingPath   string
	ShowtimesPath  string
	UserKey        string
}

type Options struct {
	Timeout         time.Duration
	RatePerSec      float64
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client talks to the Scope Cinemas mobile API. Requests are paced by a
// token bucket and short-circuit once the upstream keeps failing.
type Client struct {
	hc      *http.Client
	ep      Endpoints
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(ep Endpoints, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}

	log := logging.Component("scope")
	threshold := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "scope-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		hc:      &http.Client{Timeout: opts.Timeout},
		ep:      ep,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		breaker: cb,
	}
}

// HTTPClient exposes the timeout-bound client so the token source can share it.
func (c *Client) HTTPClient() *http.Client { return c.hc }

func (c *Client) NowShowing(ctx context.Context, token string) ([]Movie, error) {
	return c.movies(ctx, "now_showing", token, c.ep.NowShowingPath)
}

func (c *Client) Upcoming(ctx context.Context, token string) ([]Movie, error) {
	return c.movies(ctx, "upcoming", token, c.ep.UpcomingPath)
}

// Showtimes returns every theater screening movieID on date (yyyy-MM-dd).
func (c *Client) Showtimes(ctx context.Context, token, movieID, date string) ([]Theater, error) {
	body, err := c.do(ctx, "showtimes", token, c.ep.ShowtimesPath, url.Values{
		"movie_id":   {movieID},
		"movie_date": {date},
	})
	if err != nil {
		return nil, err
	}
	var res ShowtimesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode showtimes: %w", err)
	}
	return res.MovieShowtimes.Theaters, nil
}

func (c *Client) movies(ctx context.Context, endpoint, token, path string) ([]Movie, error) {
	body, err := c.do(ctx, endpoint, token, path, nil)
	if err != nil {
		return nil, err
	}
	var res MoviesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return res.Movies, nil
}

func (c *Client) do(ctx context.Context, endpoint, token, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, token, path, query)
	})
	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues(endpoint, "breaker_open").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, err)
	case err != nil:
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values) ([]byte, error) {
	u, err := url.Parse(c.ep.BaseURL + "/" + path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("user_key", c.ep.UserKey)
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstream, path, res.StatusCode)
	}
	return b, nil
}
