// Package notify emails ticket release matches.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dilshanwn/movie-tickets-notifier/internal/metrics"
	"github.com/dilshanwn/movie-tickets-notifier/internal/screening"
)

// Notifier tells one recipient about one match.
type Notifier interface {
	Send(ctx context.Context, recipient string, m screening.Match) error
}

// Mailer delivers a rendered message.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Email renders matches and hands them to a Mailer.
type Email struct {
	Mailer         Mailer
	SeatPlanDomain string
}

func (e *Email) Send(ctx context.Context, recipient string, m screening.Match) error {
	if !strings.Contains(recipient, "@") {
		metrics.Notifications.WithLabelValues("invalid_recipient").Inc()
		return fmt.Errorf("notify: invalid recipient %q", recipient)
	}
	msg, err := Render(e.SeatPlanDomain, recipient, m)
	if err != nil {
		metrics.Notifications.WithLabelValues("error").Inc()
		return err
	}
	if err := e.Mailer.Deliver(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues("error").Inc()
		return fmt.Errorf("notify %s: %w", recipient, err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}

var errNoSender = errors.New("notify: sender address required")
