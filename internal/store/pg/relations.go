package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/evetools/slacksync/internal/access"
)

var (
	_ access.RelationStore    = (*Store)(nil)
	_ access.AffiliationStore = (*Store)(nil)
	_ access.IdentityStore    = (*Store)(nil)
)

// grantChannels runs one relation query. Every variant shares the same
// shape: enabled grant rows joined against slack_channels, filtered by the
// requested visibility, with the general channel excluded.
func (s *Store) grantChannels(ctx context.Context, table, keyClause string, private bool, args ...any) ([]string, error) {
	query := fmt.Sprintf(`
		select distinct g.channel_id
		from %s g
		join slack_channels c on c.id = g.channel_id
		where g.enabled
		  and c.is_private = $1
		  and not c.is_general
		  %s
		order by g.channel_id
	`, table, keyClause)
	rows, err := s.db.QueryContext(ctx, query, append([]any{private}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (s *Store) PublicChannels(ctx context.Context, private bool) ([]string, error) {
	return s.grantChannels(ctx, "slack_channel_public", "", private)
}

func (s *Store) UserChannels(ctx context.Context, userID int64, private bool) ([]string, error) {
	return s.grantChannels(ctx, "slack_channel_users", "and g.user_id = $2", private, userID)
}

func (s *Store) RoleChannels(ctx context.Context, roleIDs []int64, private bool) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	clause := fmt.Sprintf("and g.role_id in (%s)", placeholders(2, len(roleIDs)))
	return s.grantChannels(ctx, "slack_channel_roles", clause, private, int64sToAny(roleIDs)...)
}

func (s *Store) CorporationChannels(ctx context.Context, corporationIDs []int64, private bool) ([]string, error) {
	if len(corporationIDs) == 0 {
		return nil, nil
	}
	clause := fmt.Sprintf("and g.corporation_id in (%s)", placeholders(2, len(corporationIDs)))
	return s.grantChannels(ctx, "slack_channel_corporations", clause, private, int64sToAny(corporationIDs)...)
}

func (s *Store) TitleChannels(ctx context.Context, titles []access.TitleKey, private bool) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	// Both halves of the composite key must match the same grant row.
	var (
		pairs []string
		args  []any
		idx   = 2
	)
	for _, title := range titles {
		pairs = append(pairs, fmt.Sprintf("(g.corporation_id = $%d and g.title_id = $%d)", idx, idx+1))
		args = append(args, title.CorporationID, title.TitleID)
		idx += 2
	}
	clause := fmt.Sprintf("and (%s)", strings.Join(pairs, " or "))
	return s.grantChannels(ctx, "slack_channel_titles", clause, private, args...)
}

func (s *Store) AllianceChannels(ctx context.Context, allianceIDs []int64, private bool) ([]string, error) {
	if len(allianceIDs) == 0 {
		return nil, nil
	}
	clause := fmt.Sprintf("and g.alliance_id in (%s)", placeholders(2, len(allianceIDs)))
	return s.grantChannels(ctx, "slack_channel_alliances", clause, private, int64sToAny(allianceIDs)...)
}

// ManagedChannels returns every channel id any grant row references,
// disabled rows included. Membership in a channel outside this set is never
// touched by reconciliation.
func (s *Store) ManagedChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct channel_id from (
			select channel_id from slack_channel_public
			union all select channel_id from slack_channel_users
			union all select channel_id from slack_channel_roles
			union all select channel_id from slack_channel_corporations
			union all select channel_id from slack_channel_titles
			union all select channel_id from slack_channel_alliances
		) grants
		order by channel_id
	`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (s *Store) RoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id from role_user where user_id = $1 order by role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanInt64s(rows)
}

func (s *Store) Affiliations(ctx context.Context, userID int64) ([]access.Affiliation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select corporation_id, coalesce(alliance_id, 0)
		from character_affiliations
		where user_id = $1
		order by corporation_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []access.Affiliation
	for rows.Next() {
		var a access.Affiliation
		if err := rows.Scan(&a.CorporationID, &a.AllianceID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Titles(ctx context.Context, userID int64) ([]access.TitleKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		select corporation_id, title_id
		from character_titles
		where user_id = $1
		order by corporation_id, title_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []access.TitleKey
	for rows.Next() {
		var t access.TitleKey
		if err := rows.Scan(&t.CorporationID, &t.TitleID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (access.Identity, error) {
	var identity access.Identity
	err := s.db.QueryRowContext(ctx, `
		select id, email from users where lower(email) = lower($1)
	`, email).Scan(&identity.ID, &identity.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Identity{}, access.ErrNotFound
	}
	if err != nil {
		return access.Identity{}, err
	}
	return identity, nil
}

func (s *Store) Find(ctx context.Context, id int64) (access.Identity, error) {
	var identity access.Identity
	err := s.db.QueryRowContext(ctx, `
		select id, email from users where id = $1
	`, id).Scan(&identity.ID, &identity.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return access.Identity{}, access.ErrNotFound
	}
	if err != nil {
		return access.Identity{}, err
	}
	return identity, nil
}

func int64sToAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
