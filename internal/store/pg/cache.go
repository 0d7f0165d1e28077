package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evetools/slacksync/internal/cache"
)

var _ cache.Store = (*Store)(nil)

// Snapshots live as one JSON document per Slack user id, the same shape the
// in-memory store keeps. Postgres is only a durable keyspace here; nothing
// queries inside the document.
func (s *Store) Get(ctx context.Context, slackUserID string) (cache.Snapshot, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		select doc from slack_snapshots where slack_id = $1
	`, slackUserID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Snapshot{}, cache.ErrNotCached
	}
	if err != nil {
		return cache.Snapshot{}, err
	}
	var snapshot cache.Snapshot
	if err := json.Unmarshal(doc, &snapshot); err != nil {
		return cache.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Store) Set(ctx context.Context, snapshot cache.Snapshot) error {
	doc, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into slack_snapshots (slack_id, doc, updated_at)
		values ($1, $2, now())
		on conflict (slack_id) do update
		set doc = excluded.doc, updated_at = now()
	`, snapshot.ID, doc)
	return err
}

func (s *Store) Delete(ctx context.Context, slackUserID string) error {
	result, err := s.db.ExecContext(ctx, `
		delete from slack_snapshots where slack_id = $1
	`, slackUserID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return cache.ErrNotCached
	}
	return nil
}
