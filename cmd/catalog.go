package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dilshanwn/movie-tickets-notifier/internal/scope"
)

type catalogMovie struct {
	scope.Movie
	Status string
}

func newCatalogCmd() *cobra.Command {
	var status, search string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List now-showing and upcoming movies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && status != "now_showing" && status != "upcoming" {
				return fmt.Errorf("invalid --status %q (want now_showing or upcoming)", status)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, tokens, err := newScopeClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			token, err := tokens.Token(ctx)
			if err != nil {
				return err
			}

			var all []catalogMovie
			if status != "upcoming" {
				ms, err := client.NowShowing(ctx, token)
				if err != nil {
					return err
				}
				all = appendStatus(all, ms, "now_showing")
			}
			if status != "now_showing" {
				ms, err := client.Upcoming(ctx, token)
				if err != nil {
					return err
				}
				all = appendStatus(all, ms, "upcoming")
			}

			printCatalog(cmd.OutOrStdout(), filterCatalog(all, search))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "now_showing or upcoming (default both)")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on name or genre")
	return cmd
}

func appendStatus(dst []catalogMovie, ms []scope.Movie, status string) []catalogMovie {
	for _, m := range ms {
		dst = append(dst, catalogMovie{Movie: m, Status: status})
	}
	return dst
}

// filterCatalog drops repeated ids, keeping the first, then applies search.
func filterCatalog(ms []catalogMovie, search string) []catalogMovie {
	q := strings.ToLower(strings.TrimSpace(search))
	seen := make(map[string]bool, len(ms))
	var out []catalogMovie
	for _, m := range ms {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if q != "" && !movieMatches(m.Movie, q) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func movieMatches(m scope.Movie, q string) bool {
	if strings.Contains(strings.ToLower(m.Name), q) {
		return true
	}
	for _, g := range m.Genre {
		if strings.Contains(strings.ToLower(g), q) {
			return true
		}
	}
	return false
}

func printCatalog(w io.Writer, ms []catalogMovie) {
	for _, m := range ms {
		fmt.Fprintf(w, "id=%s name=%q status=%s genre=%s release=%s\n",
			m.ID, m.Name, m.Status, strings.Join(m.Genre, ","), m.StartDate)
	}
}
