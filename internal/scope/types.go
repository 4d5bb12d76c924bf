package scope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type VersionInfo struct {
	IOS     int `json:"ios"`
	Android int `json:"andorid"`
}

type MoviesResponse struct {
	Status    bool        `json:"status"`
	Version   VersionInfo `json:"version"`
	ErrorCode int         `json:"error_code"`
	Movies    []Movie     `json:"movielist"`
}

type ShowtimesResponse struct {
	Status         bool           `json:"status"`
	Version        VersionInfo    `json:"version"`
	ErrorCode      int            `json:"error_code"`
	MovieShowtimes MovieShowtimes `json:"movieshowtimes"`
}

type MovieShowtimes struct {
	Message  string    `json:"message"`
	Theaters []Theater `json:"theaters"`
}

type Movie struct {
	ID          string   `json:"mid"`
	VistaCodes  []string `json:"vista_code"`
	Name        string   `json:"m_name"`
	Adult       int      `json:"adult"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	MovieDates  []string `json:"movie_dates"`
	YouTubeLink string   `json:"you_tube_link"`
	YouTubeID   string   `json:"you_tube_id"`
	Runtime     string   `json:"runtime"`
	Language    string   `json:"language"`
	IMDB        float64  `json:"imdb"`
	Is3D        int      `json:"is3d_movie"`
	Synopsis    string   `json:"synopsis"`
	Image       string   `json:"m_img"`
	LargeImage  string   `json:"m_large_img"`
	MobileImage string   `json:"mobile_img"`
	Trailer     string   `json:"trailer"`
	Genre       []string `json:"genre"`
	Fact        string   `json:"fact"`
	Featured    int      `json:"featured"`
	Directors   []string `json:"directors"`
	Producers   []string `json:"producers"`
	Musicians   []string `json:"musicians"`
	Writers     []string `json:"writters"`
	Cast        []Cast   `json:"cast"`
	Gallery     []string `json:"gallery"`
}

type Cast struct {
	Actor     string `json:"actor"`
	Character string `json:"character"`
}

type Theater struct {
	Name           string       `json:"t_name"`
	VistaCode      VistaCodes   `json:"t_vista_code"`
	City           string       `json:"t_city"`
	MovieID        string       `json:"mid"`
	TheaterID      string       `json:"tid"`
	MovieName      string       `json:"m_name"`
	Date           string       `json:"date"`
	BookingEndDate string       `json:"booking_end_date"`
	TheaterImage   string       `json:"t_img"`
	MovieImage     string       `json:"m_img"`
	Experiences    []Experience `json:"experinces"`
}

type Experience struct {
	Name      string     `json:"experience_name"`
	ID        string     `json:"experience_id"`
	Showtimes []Showtime `json:"showtimes"`
}

type Showtime struct {
	ID       int    `json:"sid"`
	Name     string `json:"showtime_name"`
	CinemaID string `json:"cinema_id"`
	Status   int    `json:"showtime_status"`
}

// VistaCodes is the set of region codes a theater belongs to. The API sends
// either a single string (possibly comma separated) or an array.
type VistaCodes []string

func (v *VistaCodes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = nil
		return nil
	}
	if b[0] == '[' {
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return fmt.Errorf("t_vista_code: %w", err)
		}
		*v = normalizeCodes(arr)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("t_vista_code: %w", err)
	}
	*v = normalizeCodes(strings.Split(s, ","))
	return nil
}

// Contains reports exact membership of code.
func (v VistaCodes) Contains(code string) bool {
	for _, c := range v {
		if c == code {
			return true
		}
	}
	return false
}

func normalizeCodes(in []string) VistaCodes {
	var out VistaCodes
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
