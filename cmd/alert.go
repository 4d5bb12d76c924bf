package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dilshanwn/movie-tickets-notifier/internal/alerts"
	"github.com/dilshanwn/movie-tickets-notifier/internal/config"
)

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage ticket alerts",
	}
	cmd.AddCommand(newAlertAddCmd())
	cmd.AddCommand(newAlertListCmd())
	cmd.AddCommand(newAlertShowCmd())
	cmd.AddCommand(newAlertSetActiveCmd("activate", "Enable an alert", true))
	cmd.AddCommand(newAlertSetActiveCmd("deactivate", "Disable an alert", false))
	cmd.AddCommand(newAlertToggleCmd())
	cmd.AddCommand(newAlertDeleteCmd())
	return cmd
}

// withRepo opens the database for one alert command.
func withRepo(fn func(ctx context.Context, cfg config.Config, repo *alerts.Repo) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, err := openDB(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, cfg, alerts.NewRepo(d))
}

func newAlertAddCmd() *cobra.Command {
	var (
		email       string
		movieName   string
		movieID     string
		location    string
		experiences string
		date        string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Create an alert for a movie by name or by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, cfg config.Config, repo *alerts.Repo) error {
				a, err := buildAlert(email, movieName, movieID, location, experiences, date, cfg.HomeLocation, time.Now())
				if err != nil {
					return err
				}
				created, err := repo.Create(ctx, a)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created alert id=%d date=%s location=%s experiences=%s\n",
					created.ID, created.Day(), created.Location, strings.Join(created.Experiences, ","))
				return nil
			})
		},
	}

	c.Flags().StringVar(&email, "email", "", "subscriber email")
	c.Flags().StringVar(&movieName, "movie-name", "", "movie name, resolved against the catalog on every run")
	c.Flags().StringVar(&movieID, "movie-id", "", "upstream movie id")
	c.Flags().StringVar(&location, "location", "", "vista code of the cinema (defaults to HOME_LOCATION)")
	c.Flags().StringVar(&experiences, "experiences", "", "comma-separated experiences (default Digital)")
	c.Flags().StringVar(&date, "date", "", "screening date YYYY-MM-DD (default tomorrow)")

	_ = c.MarkFlagRequired("email")
	c.MarkFlagsOneRequired("movie-name", "movie-id")
	c.MarkFlagsMutuallyExclusive("movie-name", "movie-id")
	return c
}

func buildAlert(email, movieName, movieID, location, experiences, date, home string, now time.Time) (alerts.Alert, error) {
	a := alerts.Alert{
		Email:       email,
		MovieName:   movieName,
		MovieID:     movieID,
		Location:    location,
		Experiences: splitCSV(experiences),
		Active:      true,
	}
	if strings.TrimSpace(date) != "" {
		d, err := alerts.ParseDate(date)
		if err != nil {
			return alerts.Alert{}, err
		}
		a.Date = d
	}
	a.ApplyDefaults(home, now)
	if err := a.Validate(); err != nil {
		return alerts.Alert{}, err
	}
	return a, nil
}

func newAlertListCmd() *cobra.Command {
	var email string
	c := &cobra.Command{
		Use:   "list",
		Short: "List alerts for an email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, _ config.Config, repo *alerts.Repo) error {
				as, err := repo.ListByEmail(ctx, email)
				if err != nil {
					return err
				}
				printAlerts(cmd.OutOrStdout(), as)
				return nil
			})
		},
	}
	c.Flags().StringVar(&email, "email", "", "subscriber email")
	_ = c.MarkFlagRequired("email")
	return c
}

func newAlertShowCmd() *cobra.Command {
	var (
		id    int64
		email string
	)
	c := &cobra.Command{
		Use:   "show",
		Short: "Show one alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, _ config.Config, repo *alerts.Repo) error {
				a, err := repo.Get(ctx, id, email)
				if err != nil {
					return fmt.Errorf("alert %d: %w", id, err)
				}
				printAlerts(cmd.OutOrStdout(), []alerts.Alert{a})
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "alert id")
	c.Flags().StringVar(&email, "email", "", "owner email")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("email")
	return c
}

func printAlerts(w io.Writer, as []alerts.Alert) {
	for _, a := range as {
		movie := "id:" + a.MovieID
		if a.Kind() == alerts.ByName {
			movie = "name:" + a.MovieName
		}
		fmt.Fprintf(w, "id=%d movie=%q date=%s location=%s experiences=%s active=%t\n",
			a.ID, movie, a.Day(), a.Location, strings.Join(a.Experiences, ","), a.Active)
	}
}

func newAlertSetActiveCmd(use, short string, active bool) *cobra.Command {
	var (
		id    int64
		email string
	)
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, _ config.Config, repo *alerts.Repo) error {
				if err := repo.SetActive(ctx, id, email, active); err != nil {
					return fmt.Errorf("alert %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "alert id=%d active=%t\n", id, active)
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "alert id")
	c.Flags().StringVar(&email, "email", "", "owner email")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("email")
	return c
}

func newAlertToggleCmd() *cobra.Command {
	var (
		id    int64
		email string
	)
	c := &cobra.Command{
		Use:   "toggle",
		Short: "Flip an alert between active and inactive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, _ config.Config, repo *alerts.Repo) error {
				active, err := repo.ToggleActive(ctx, id, email)
				if err != nil {
					return fmt.Errorf("alert %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "alert id=%d active=%t\n", id, active)
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "alert id")
	c.Flags().StringVar(&email, "email", "", "owner email")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("email")
	return c
}

func newAlertDeleteCmd() *cobra.Command {
	var (
		ids   string
		email string
	)
	c := &cobra.Command{
		Use:   "delete",
		Short: "Delete one or more alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseIDs(ids)
			if err != nil {
				return err
			}
			return withRepo(func(ctx context.Context, _ config.Config, repo *alerts.Repo) error {
				if len(parsed) == 1 {
					if err := repo.Delete(ctx, parsed[0], email); err != nil {
						return fmt.Errorf("alert %d: %w", parsed[0], err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted=1\n")
					return nil
				}
				n, err := repo.DeleteMany(ctx, parsed, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
				return nil
			})
		},
	}
	c.Flags().StringVar(&ids, "ids", "", "comma-separated alert ids")
	c.Flags().StringVar(&email, "email", "", "owner email")
	_ = c.MarkFlagRequired("ids")
	_ = c.MarkFlagRequired("email")
	return c
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, p := range splitCSV(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid alert id %q", p)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no alert ids given")
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
