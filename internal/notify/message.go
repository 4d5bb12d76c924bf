package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/dilshanwn/movie-tickets-notifier/internal/screening"
)

//go:embed templates/*.html
var fs embed.FS

var releaseTmpl = template.Must(template.ParseFS(fs, "templates/tickets_released.html"))

type Message struct {
	To      string
	Subject string
	HTML    string
}

type showtimeLink struct {
	Name string
	URL  string
}

// Subject is "{MOVIE NAME UPPERCASE} - {experience} Tickets Released".
func Subject(m screening.Match) string {
	return fmt.Sprintf("%s - %s Tickets Released", strings.ToUpper(m.Theater.MovieName), m.Experience.Name)
}

// SeatPlanURL deep links a showtime's seat plan.
func SeatPlanURL(domain, cinemaID string, showtimeID int) string {
	return fmt.Sprintf("https://%s/seat-plan/%s/%d", domain, url.PathEscape(cinemaID), showtimeID)
}

// Render builds the release email for one match.
func Render(domain, to string, m screening.Match) (Message, error) {
	data := struct {
		Subject    string
		Theater    string
		Date       string
		Experience string
		Showtimes  []showtimeLink
	}{
		Subject:    Subject(m),
		Theater:    m.Theater.Name,
		Date:       m.Theater.Date,
		Experience: m.Experience.Name,
	}
	for _, st := range m.Experience.Showtimes {
		data.Showtimes = append(data.Showtimes, showtimeLink{
			Name: st.Name,
			URL:  SeatPlanURL(domain, st.CinemaID, st.ID),
		})
	}

	var buf bytes.Buffer
	if err := releaseTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	return Message{To: to, Subject: data.Subject, HTML: buf.String()}, nil
}
