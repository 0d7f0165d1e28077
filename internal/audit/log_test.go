package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/evetools/slacksync/internal/obs"
)

func TestEventCarriesSweepContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(obs.NewJSONLogger(&buf))

	ctx := WithSweepID(context.Background(), "sweep-123")
	if err := log.Event(ctx, "membership.invite", map[string]any{"slack_id": "U1", "channel": "C1"}); err != nil {
		t.Fatalf("Event: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "membership.invite" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["sweep_id"] != "sweep-123" {
		t.Fatalf("unexpected sweep id: %v", entry["sweep_id"])
	}
	if entry["slack_id"] != "U1" || entry["channel"] != "C1" {
		t.Fatalf("fields missing: %v", entry)
	}
}

func TestEventRequiresName(t *testing.T) {
	log := New(nil)
	if err := log.Event(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestEventWithoutSweepID(t *testing.T) {
	var buf bytes.Buffer
	log := New(obs.NewJSONLogger(&buf))

	if err := log.Event(context.Background(), "membership.kick", nil); err != nil {
		t.Fatalf("Event: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if _, ok := entry["sweep_id"]; ok {
		t.Fatal("sweep_id must be absent without context")
	}
}
