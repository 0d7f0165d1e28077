package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evetools/slacksync/internal/jobs"
)

// JobStore persists job tracking records. It shares the Store's pool but
// lives behind its own type so its method set stays separate from the
// association store's.
type JobStore struct {
	db *sql.DB
}

var _ jobs.TrackingStore = (*JobStore)(nil)

// Jobs returns the tracking store view.
func (s *Store) Jobs() *JobStore { return &JobStore{db: s.db} }

func (s *JobStore) FindActive(ctx context.Context, ownerID int64, apiScope string) (jobs.Record, bool, error) {
	var record jobs.Record
	err := s.db.QueryRowContext(ctx, `
		select job_id, owner_id, api_scope, status, created_at
		from job_tracking
		where owner_id = $1 and api_scope = $2 and status in ('Queued', 'Working')
		order by created_at
		limit 1
	`, ownerID, apiScope).Scan(&record.JobID, &record.OwnerID, &record.APIScope, &record.Status, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Record{}, false, nil
	}
	if err != nil {
		return jobs.Record{}, false, err
	}
	return record, true, nil
}

// Create inserts the tracking record. A partial unique index over active
// rows makes the single-flight claim atomic: two concurrent inserts for the
// same (owner, scope) pair race on the index and the loser gets ErrConflict,
// closing the check-then-insert window a time delay alone leaves open.
func (s *JobStore) Create(ctx context.Context, record jobs.Record) error {
	_, err := s.db.ExecContext(ctx, `
		insert into job_tracking (job_id, owner_id, api_scope, status, created_at)
		values ($1, $2, $3, $4, coalesce($5, now()))
	`, record.JobID, record.OwnerID, record.APIScope, string(record.Status), nullableTime(record.CreatedAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return jobs.ErrConflict
		}
		return err
	}
	return nil
}

func (s *JobStore) SetStatus(ctx context.Context, jobID string, status jobs.Status) error {
	result, err := s.db.ExecContext(ctx, `
		update job_tracking set status = $2 where job_id = $1
	`, jobID, string(status))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return jobs.ErrUnknownJob
	}
	return nil
}
