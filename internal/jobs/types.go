package jobs

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a tracked job.
type Status string

const (
	StatusQueued  Status = "Queued"
	StatusWorking Status = "Working"
	StatusDone    Status = "Done"
	StatusFailed  Status = "Failed"
)

// Terminal reports whether the status ends the job's single-flight claim.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Record tracks a submitted job. At most one record with a non-terminal
// status exists per (OwnerID, APIScope) pair at any time.
type Record struct {
	JobID     string
	OwnerID   int64
	APIScope  string
	Status    Status
	CreatedAt time.Time
}

// Spec describes the work to submit. Task runs on the execution backend;
// the backend, not the queue, transitions the record to Done or Failed.
type Spec struct {
	OwnerID  int64
	APIScope string
	Task     func(ctx context.Context) error
}

var (
	// ErrConflict is returned by TrackingStore.Create when an active record
	// already claims the (owner, scope) pair.
	ErrConflict = errors.New("jobs: active record exists")
	// ErrUnknownJob is returned for status updates against untracked ids.
	ErrUnknownJob = errors.New("jobs: unknown job id")
)

// TrackingStore persists job records.
type TrackingStore interface {
	// FindActive returns the record holding the single-flight claim for
	// (ownerID, apiScope), or ok=false when none is Queued or Working.
	FindActive(ctx context.Context, ownerID int64, apiScope string) (Record, bool, error)
	// Create inserts a record; ErrConflict when an active record exists.
	Create(ctx context.Context, record Record) error
	// SetStatus transitions a tracked job.
	SetStatus(ctx context.Context, jobID string, status Status) error
}

// Backend schedules submitted jobs for execution after the given delay and
// returns the backend's job identifier.
type Backend interface {
	Submit(ctx context.Context, spec Spec, delay time.Duration) (string, error)
}
