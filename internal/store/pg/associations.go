package pg

import (
	"context"
	"database/sql"
	"errors"

	syncpkg "github.com/evetools/slacksync/internal/sync"
)

var _ syncpkg.AssociationStore = (*Store)(nil)

func (s *Store) FindBySlackID(ctx context.Context, slackID string) (syncpkg.Association, error) {
	var a syncpkg.Association
	err := s.db.QueryRowContext(ctx, `
		select user_id, slack_id, name, created_at
		from slack_users
		where slack_id = $1
	`, slackID).Scan(&a.UserID, &a.SlackID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return syncpkg.Association{}, syncpkg.ErrNoAssociation
	}
	if err != nil {
		return syncpkg.Association{}, err
	}
	return a, nil
}

func (s *Store) FindByUserID(ctx context.Context, userID int64) (syncpkg.Association, error) {
	var a syncpkg.Association
	err := s.db.QueryRowContext(ctx, `
		select user_id, slack_id, name, created_at
		from slack_users
		where user_id = $1
	`, userID).Scan(&a.UserID, &a.SlackID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return syncpkg.Association{}, syncpkg.ErrNoAssociation
	}
	if err != nil {
		return syncpkg.Association{}, err
	}
	return a, nil
}

// Create makes the association exclusive for the local user in one
// statement: the upsert replaces any previous Slack account linked to the
// same user id.
func (s *Store) Create(ctx context.Context, a syncpkg.Association) error {
	_, err := s.db.ExecContext(ctx, `
		insert into slack_users (user_id, slack_id, name, created_at)
		values ($1, $2, $3, coalesce($4, now()))
		on conflict (user_id) do update
		set slack_id = excluded.slack_id,
		    name = excluded.name,
		    created_at = excluded.created_at
	`, a.UserID, a.SlackID, a.Name, nullableTime(a.CreatedAt))
	return err
}

func (s *Store) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `delete from slack_users where user_id = $1`, userID)
	return err
}

func (s *Store) List(ctx context.Context) ([]syncpkg.Association, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, slack_id, name, created_at
		from slack_users
		order by slack_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []syncpkg.Association
	for rows.Next() {
		var a syncpkg.Association
		if err := rows.Scan(&a.UserID, &a.SlackID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
