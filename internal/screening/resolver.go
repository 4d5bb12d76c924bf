package screening

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dilshanwn/movie-tickets-notifier/internal/logging"
	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
)

// Source is the slice of the cinema API the pipeline reads.
type Source interface {
	NowShowing(ctx context.Context, token string) ([]scope.Movie, error)
	Upcoming(ctx context.Context, token string) ([]scope.Movie, error)
	Showtimes(ctx context.Context, token, movieID, date string) ([]scope.Theater, error)
}

type CatalogEntry struct {
	MovieID   string
	MovieName string
}

// ResolveIDs returns the ids of every catalog entry whose name contains one
// of names, ignoring case. Ids come back in first-match order without repeats.
func ResolveIDs(names []string, catalog []CatalogEntry) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		for _, e := range catalog {
			if !strings.Contains(strings.ToLower(e.MovieName), needle) {
				continue
			}
			if _, ok := seen[e.MovieID]; ok {
				continue
			}
			seen[e.MovieID] = struct{}{}
			ids = append(ids, e.MovieID)
		}
	}
	return ids
}

type Resolver struct {
	src Source
	log zerolog.Logger
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src, log: logging.Component("resolver")}
}

// FetchCatalog returns now showing followed by upcoming. A failing endpoint
// is logged and contributes nothing.
func (r *Resolver) FetchCatalog(ctx context.Context, token string) []CatalogEntry {
	var out []CatalogEntry
	for _, part := range []struct {
		name  string
		fetch func(context.Context, string) ([]scope.Movie, error)
	}{
		{"now_showing", r.src.NowShowing},
		{"upcoming", r.src.Upcoming},
	} {
		movies, err := part.fetch(ctx, token)
		if err != nil {
			r.log.Warn().Err(err).Str("list", part.name).Msg("catalog fetch failed")
			continue
		}
		for _, m := range movies {
			out = append(out, CatalogEntry{MovieID: m.ID, MovieName: m.Name})
		}
	}
	r.log.Debug().Int("entries", len(out)).Msg("catalog loaded")
	return out
}
