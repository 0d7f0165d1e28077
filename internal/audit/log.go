package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/evetools/slacksync/internal/obs"
)

type ctxKey string

const sweepIDKey ctxKey = "audit_sweep_id"

// WithSweepID attaches the sweep identifier to the context so every event
// emitted during the sweep can be correlated.
func WithSweepID(ctx context.Context, sweepID string) context.Context {
	sweepID = strings.TrimSpace(sweepID)
	if sweepID == "" {
		return ctx
	}
	return context.WithValue(ctx, sweepIDKey, sweepID)
}

func sweepIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(sweepIDKey).(string); ok {
		return v
	}
	return ""
}

// Log records membership mutations (invites, kicks, associations) through
// an injected sink.
type Log struct {
	sink obs.Logger
}

// New wires an audit log. sink may be nil.
func New(sink obs.Logger) *Log {
	return &Log{sink: obs.OrNop(sink)}
}

// Event writes one audit entry enriched with sweep context.
func (l *Log) Event(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"type":  "audit",
		"event": event,
		"at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if sweepID := sweepIDFromContext(ctx); sweepID != "" {
		entry["sweep_id"] = sweepID
	}
	for k, v := range fields {
		if _, reserved := entry[k]; reserved {
			continue
		}
		entry[k] = v
	}
	l.sink.Log(event, entry)
	return nil
}
