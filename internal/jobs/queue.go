package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/evetools/slacksync/internal/obs"
)

// Refusal is an expected operating condition reported as an ordinary return
// value, never as an error.
type Refusal string

const (
	// RefusalNone means the enqueue was accepted or deduplicated.
	RefusalNone Refusal = ""
	// RefusalDefaultAdminContact blocks all scheduling until the operator
	// replaces the default administrative contact.
	RefusalDefaultAdminContact Refusal = "default admin contact still configured"
	// RefusalInvalidJobID reports a backend submission that returned a
	// malformed identifier; no tracking record was created.
	RefusalInvalidJobID Refusal = "backend returned an invalid job id"
)

// minJobIDLength rejects degenerate backend ids such as "0" or the empty
// string. Well-formed backend ids are far longer.
const minJobIDLength = 2

// Queue guarantees at most one in-flight job per (owner, scope).
//
// The check-then-write sequence is not held under a lock; a second caller
// racing the same pair can slip between the lookup and the insert. The
// scheduling delay narrows that window and the tracking store's conflict
// detection closes it: a lost race surfaces as ErrConflict and the winner's
// job id is returned instead of a duplicate being scheduled.
type Queue struct {
	tracking     TrackingStore
	backend      Backend
	adminContact func() bool // reports whether the contact is configured
	graceDelay   time.Duration
	logger       obs.Logger
}

// NewQueue wires a dedup queue. adminContactConfigured is consulted on
// every enqueue; graceDelay is handed to the backend so the tracking write
// lands before the job can start.
func NewQueue(tracking TrackingStore, backend Backend, adminContactConfigured func() bool, graceDelay time.Duration, logger obs.Logger) *Queue {
	if graceDelay <= 0 {
		graceDelay = 3 * time.Second
	}
	return &Queue{
		tracking:     tracking,
		backend:      backend,
		adminContact: adminContactConfigured,
		graceDelay:   graceDelay,
		logger:       obs.OrNop(logger),
	}
}

// EnqueueUnique schedules spec unless an active job already claims its
// (owner, scope) pair, in which case the existing job id is returned. The
// safety-gate and malformed-id outcomes come back as refusals; err is
// reserved for store and backend failures.
func (q *Queue) EnqueueUnique(ctx context.Context, spec Spec) (jobID string, refusal Refusal, err error) {
	if q.adminContact != nil && !q.adminContact() {
		q.logger.Error("default admin contact still set, not queuing job", map[string]any{
			"owner_id":  spec.OwnerID,
			"api_scope": spec.APIScope,
		})
		return "", RefusalDefaultAdminContact, nil
	}

	existing, ok, err := q.tracking.FindActive(ctx, spec.OwnerID, spec.APIScope)
	if err != nil {
		return "", RefusalNone, err
	}
	if ok {
		q.logger.Warning("job already tracked, skipping enqueue", map[string]any{
			"owner_id":  spec.OwnerID,
			"api_scope": spec.APIScope,
			"job_id":    existing.JobID,
		})
		return existing.JobID, RefusalNone, nil
	}

	jobID, err = q.backend.Submit(ctx, spec, q.graceDelay)
	if err != nil {
		return "", RefusalNone, err
	}
	if len(jobID) < minJobIDLength {
		q.logger.Error("backend returned an invalid job id", map[string]any{
			"owner_id": spec.OwnerID,
			"job_id":   jobID,
		})
		return "", RefusalInvalidJobID, nil
	}

	record := Record{
		JobID:     jobID,
		OwnerID:   spec.OwnerID,
		APIScope:  spec.APIScope,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.tracking.Create(ctx, record); err != nil {
		if errors.Is(err, ErrConflict) {
			// lost the race; hand back the winner's id
			winner, ok, findErr := q.tracking.FindActive(ctx, spec.OwnerID, spec.APIScope)
			if findErr == nil && ok {
				return winner.JobID, RefusalNone, nil
			}
		}
		return "", RefusalNone, err
	}

	q.logger.Log("job queued", map[string]any{
		"owner_id":  spec.OwnerID,
		"api_scope": spec.APIScope,
		"job_id":    jobID,
	})
	return jobID, RefusalNone, nil
}
