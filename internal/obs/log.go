package obs

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger is the sink for operational logging. Components receive a Logger
// through their constructor; nothing resolves a logger from global state.
// Implementations must be safe for concurrent use.
type Logger interface {
	Log(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Warning(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// JSONLogger writes one JSON document per line to the configured writer.
type JSONLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONLogger returns a structured sink writing to w.
func NewJSONLogger(w io.Writer) *JSONLogger {
	if w == nil {
		w = os.Stdout
	}
	return &JSONLogger{out: w}
}

func (l *JSONLogger) emit(level, msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range fields {
		if k == "ts" || k == "level" || k == "msg" {
			continue
		}
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(`{"level":"error","msg":"log marshal failed"}`)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}

func (l *JSONLogger) Log(msg string, fields map[string]any)     { l.emit("info", msg, fields) }
func (l *JSONLogger) Debug(msg string, fields map[string]any)   { l.emit("debug", msg, fields) }
func (l *JSONLogger) Warning(msg string, fields map[string]any) { l.emit("warning", msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]any)   { l.emit("error", msg, fields) }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Log(string, map[string]any)     {}
func (NopLogger) Debug(string, map[string]any)   {}
func (NopLogger) Warning(string, map[string]any) {}
func (NopLogger) Error(string, map[string]any)   {}

// OrNop returns l, or a NopLogger when l is nil. Constructors use it so a
// caller may leave the logger unset.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}
