package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogMailer writes messages to the log instead of sending them and keeps a
// copy of each. Used for dry runs.
type LogMailer struct {
	Log zerolog.Logger

	mu   sync.Mutex
	sent []Message
}

func (l *LogMailer) Deliver(ctx context.Context, msg Message) error {
	l.Log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("dry run: email not sent")
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()
	return nil
}

func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
