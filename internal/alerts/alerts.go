package alerts

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var DefaultExperiences = []string{"Digital"}

type Kind string

const (
	ByName Kind = "name"
	ByID   Kind = "id"
)

// Alert is a standing request to be emailed when tickets open. Exactly one of
// MovieName or MovieID is set.
type Alert struct {
	ID          int64
	CreatedAt   time.Time
	Email       string
	Location    string
	Experiences []string
	Date        time.Time
	Active      bool

	MovieName string
	MovieID   string
}

func (a Alert) Kind() Kind {
	if a.MovieID != "" {
		return ByID
	}
	return ByName
}

// Day is the alert date in the upstream yyyy-MM-dd form.
func (a Alert) Day() string {
	return a.Date.Format(DateLayout)
}

// WithMovieID derives a by-id alert carrying everything but the movie.
func (a Alert) WithMovieID(id string) Alert {
	d := a
	d.MovieName = ""
	d.MovieID = id
	d.Experiences = append([]string(nil), a.Experiences...)
	return d
}

// ApplyDefaults fills location, experiences and date the way new alerts are
// created: home location, Digital, tomorrow.
func (a *Alert) ApplyDefaults(homeLocation string, now time.Time) {
	a.Email = strings.TrimSpace(a.Email)
	a.MovieName = strings.TrimSpace(a.MovieName)
	a.MovieID = strings.TrimSpace(a.MovieID)
	if strings.TrimSpace(a.Location) == "" {
		a.Location = homeLocation
	}
	var exps []string
	for _, e := range a.Experiences {
		if e = strings.TrimSpace(e); e != "" {
			exps = append(exps, e)
		}
	}
	if len(exps) == 0 {
		exps = append(exps, DefaultExperiences...)
	}
	a.Experiences = exps
	if a.Date.IsZero() {
		y, m, d := now.AddDate(0, 0, 1).Date()
		a.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

func (a Alert) Validate() error {
	if a.Email == "" || !strings.Contains(a.Email, "@") {
		return fmt.Errorf("email required")
	}
	if (a.MovieName == "") == (a.MovieID == "") {
		return fmt.Errorf("exactly one of movie name or movie id required")
	}
	if a.Location == "" {
		return fmt.Errorf("location required")
	}
	if len(a.Experiences) == 0 {
		return fmt.Errorf("at least one experience required")
	}
	if a.Date.IsZero() {
		return fmt.Errorf("date required")
	}
	return nil
}

// ParseDate accepts yyyy-MM-dd.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
