package access

import "time"

// Identity is a local user account subject to channel access evaluation.
// Owned by the host system; read-only here.
type Identity struct {
	ID    int64
	Email string
}

// Channel mirrors a Slack conversation as known to the relation tables.
type Channel struct {
	ID        string
	Name      string
	IsPrivate bool
	IsGeneral bool
}

// GrantKind tags the relation variants.
type GrantKind string

const (
	GrantPublic      GrantKind = "public"
	GrantUser        GrantKind = "user"
	GrantRole        GrantKind = "role"
	GrantCorporation GrantKind = "corporation"
	GrantTitle       GrantKind = "title"
	GrantAlliance    GrantKind = "alliance"
)

// Grant is one relation row. Exactly the key fields matching Kind are set:
// UserID for user grants, RoleID for role grants, CorporationID for
// corporation grants, CorporationID+TitleID for title grants, AllianceID for
// alliance grants, none for public grants. At most one enabled grant exists
// per (kind, key, channel); duplicates are rejected at creation, not merged.
type Grant struct {
	Kind          GrantKind
	ChannelID     string
	Enabled       bool
	UserID        int64
	RoleID        int64
	CorporationID int64
	TitleID       int64
	AllianceID    int64
	CreatedAt     time.Time
}

// TitleKey is the composite key of a title grant. A title held in
// corporation A never satisfies a grant defined for the same title id under
// corporation B.
type TitleKey struct {
	CorporationID int64
	TitleID       int64
}

// Affiliation records one character's corporate membership and, when the
// corporation belongs to an alliance, the alliance id (zero otherwise).
type Affiliation struct {
	CorporationID int64
	AllianceID    int64
}
