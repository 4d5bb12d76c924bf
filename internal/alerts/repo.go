package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/dilshanwn/movie-tickets-notifier/internal/db"
)

// Store is the read side the matching run depends on.
type Store interface {
	ActiveByName(ctx context.Context) ([]Alert, error)
	ActiveByID(ctx context.Context) ([]Alert, error)
}

// Repo persists alerts in Postgres.
type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const selectAlert = `
SELECT id, created_at, email, COALESCE(movie_name, ''), COALESCE(movie_id, ''), location, experiences, alert_date, active
FROM alerts`

func (r *Repo) ActiveByName(ctx context.Context) ([]Alert, error) {
	return r.list(ctx, selectAlert+` WHERE active AND movie_name IS NOT NULL ORDER BY id`)
}

func (r *Repo) ActiveByID(ctx context.Context) ([]Alert, error) {
	return r.list(ctx, selectAlert+` WHERE active AND movie_id IS NOT NULL ORDER BY id`)
}

func (r *Repo) ListByEmail(ctx context.Context, email string) ([]Alert, error) {
	return r.list(ctx, selectAlert+` WHERE email=$1 ORDER BY created_at DESC, id DESC`, email)
}

func (r *Repo) Get(ctx context.Context, id int64, email string) (Alert, error) {
	row := r.db.QueryRow(ctx, selectAlert+` WHERE id=$1 AND email=$2`, id, email)
	a, err := scanAlert(row)
	if err != nil {
		return Alert{}, db.WrapNotFound(err)
	}
	return a, nil
}

// Create stores a validated alert and returns it with id and created_at set.
func (r *Repo) Create(ctx context.Context, a Alert) (Alert, error) {
	if err := a.Validate(); err != nil {
		return Alert{}, err
	}
	err := r.db.QueryRow(ctx, `
INSERT INTO alerts(email, movie_name, movie_id, location, experiences, alert_date, active)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, TRUE)
RETURNING id, created_at, active`,
		a.Email, a.MovieName, a.MovieID, a.Location, a.Experiences, a.Date,
	).Scan(&a.ID, &a.CreatedAt, &a.Active)
	if err != nil {
		return Alert{}, db.WrapNotFound(err)
	}
	return a, nil
}

func (r *Repo) SetActive(ctx context.Context, id int64, email string, active bool) error {
	n, err := r.db.Exec(ctx, `UPDATE alerts SET active=$3 WHERE id=$1 AND email=$2`, id, email, active)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ToggleActive flips the flag and returns the new value.
func (r *Repo) ToggleActive(ctx context.Context, id int64, email string) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `UPDATE alerts SET active = NOT active WHERE id=$1 AND email=$2 RETURNING active`, id, email).Scan(&active)
	if err != nil {
		return false, db.WrapNotFound(err)
	}
	return active, nil
}

func (r *Repo) Delete(ctx context.Context, id int64, email string) error {
	n, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id=$1 AND email=$2`, id, email)
	if err != nil {
		return db.WrapNotFound(err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteMany removes the listed alerts owned by email and reports how many went.
func (r *Repo) DeleteMany(ctx context.Context, ids []int64, email string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id = ANY($1) AND email=$2`, ids, email)
	if err != nil {
		return 0, db.WrapNotFound(err)
	}
	return n, nil
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Alert, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row db.Row) (Alert, error) {
	var a Alert
	var date time.Time
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.Email, &a.MovieName, &a.MovieID, &a.Location, &a.Experiences, &date, &a.Active); err != nil {
		return Alert{}, err
	}
	a.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return a, nil
}
