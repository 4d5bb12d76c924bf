package scope

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showtimesJSON = `{
  "status": true,
  "version": {"ios": 3, "andorid": 4},
  "error_code": 0,
  "movieshowtimes": {
    "message": "ok",
    "theaters": [{
      "t_name": "Scope Colombo City",
      "t_vista_code": "HCM",
      "mid": "42",
      "m_name": "Dune Part Two",
      "date": "2024-06-01",
      "experinces": [{
        "experience_name": "Digital 2D",
        "experience_id": "1",
        "showtimes": [{"sid": 7, "showtime_name": "10:30 AM", "cinema_id": "0001", "showtime_status": 1}]
      }]
    }]
  }
}`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/now", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "uk", r.URL.Query().Get("user_key"))
		_, _ = w.Write([]byte(`{"status":true,"movielist":[{"mid":"42","m_name":"Dune Part Two","vista_code":["V1"],"genre":["Sci-Fi"]}]}`))
	})
	mux.HandleFunc("/soon", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(`{"status":true,"movielist":[]}`))
	})
	mux.HandleFunc("/times", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "42", r.URL.Query().Get("movie_id"))
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("movie_date"))
		_, _ = w.Write([]byte(showtimesJSON))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, showtimesPath string, failures uint32) *Client {
	return New(Endpoints{
		BaseURL:        srv.URL,
		NowShowingPath: "now",
		UpcomingPath:   "soon",
		ShowtimesPath:  showtimesPath,
		UserKey:        "uk",
	}, Options{Timeout: 2 * time.Second, RatePerSec: 1000, BreakerFailures: failures})
}

func TestClientMovies(t *testing.T) {
	var hits int32
	c := newTestClient(newTestServer(t, &hits), "times", 5)

	now, err := c.NowShowing(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, now, 1)
	assert.Equal(t, "42", now[0].ID)
	assert.Equal(t, "Dune Part Two", now[0].Name)
	assert.Equal(t, []string{"Sci-Fi"}, now[0].Genre)

	soon, err := c.Upcoming(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, soon)
}

func TestClientShowtimes(t *testing.T) {
	var hits int32
	c := newTestClient(newTestServer(t, &hits), "times", 5)

	theaters, err := c.Showtimes(context.Background(), "tok", "42", "2024-06-01")
	require.NoError(t, err)
	require.Len(t, theaters, 1)

	th := theaters[0]
	assert.Equal(t, VistaCodes{"HCM"}, th.VistaCode)
	require.Len(t, th.Experiences, 1)
	assert.Equal(t, "Digital 2D", th.Experiences[0].Name)
	require.Len(t, th.Experiences[0].Showtimes, 1)
	assert.Equal(t, 7, th.Experiences[0].Showtimes[0].ID)
	assert.Equal(t, "0001", th.Experiences[0].Showtimes[0].CinemaID)
}

func TestClientUpstreamErrorOpensBreaker(t *testing.T) {
	var hits int32
	c := newTestClient(newTestServer(t, &hits), "broken", 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Showtimes(ctx, "tok", "42", "2024-06-01")
		require.ErrorIs(t, err, ErrUpstream)
	}
	_, err := c.Showtimes(ctx, "tok", "42", "2024-06-01")
	require.ErrorIs(t, err, ErrUpstream)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not reach the server")
}

func TestTokenSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	}))
	defer srv.Close()

	tok, err := NewTokenSource(srv.URL, "id", "secret", nil).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestTokenSourceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewTokenSource(srv.URL, "id", "bad", nil).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestVistaCodesUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want VistaCodes
	}{
		{"string", `"HCM"`, VistaCodes{"HCM"}},
		{"comma string", `"HCM, HN"`, VistaCodes{"HCM", "HN"}},
		{"array", `["HCM","HN"]`, VistaCodes{"HCM", "HN"}},
		{"null", `null`, nil},
		{"empty", `""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v VistaCodes
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v)
		})
	}

	var v VistaCodes
	assert.Error(t, json.Unmarshal([]byte(`42`), &v))
}

func TestVistaCodesContains(t *testing.T) {
	v := VistaCodes{"HCM", "HN"}
	assert.True(t, v.Contains("HCM"))
	assert.False(t, v.Contains("hcm"))
	assert.False(t, VistaCodes{"HN"}.Contains("HCM"))
}
