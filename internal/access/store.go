package access

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by lookups with no matching row.
	ErrNotFound = errors.New("access: not found")
	// ErrConflict is returned when a write collides with an existing row.
	ErrConflict = errors.New("access: conflict")
)

// RelationStore reads persisted channel grants. Every query returns only
// enabled rows whose channel matches the requested visibility and is not the
// general channel. Writes originate solely from the admin collaborator and
// are out of scope here.
type RelationStore interface {
	// PublicChannels returns channels carrying an enabled public grant.
	PublicChannels(ctx context.Context, private bool) ([]string, error)
	// UserChannels returns channels granted directly to the user.
	UserChannels(ctx context.Context, userID int64, private bool) ([]string, error)
	// RoleChannels returns channels granted to any of the given roles.
	RoleChannels(ctx context.Context, roleIDs []int64, private bool) ([]string, error)
	// CorporationChannels returns channels granted to any of the given
	// corporations.
	CorporationChannels(ctx context.Context, corporationIDs []int64, private bool) ([]string, error)
	// TitleChannels returns channels granted to any of the given composite
	// (corporation, title) keys. Both members of the key must agree.
	TitleChannels(ctx context.Context, titles []TitleKey, private bool) ([]string, error)
	// AllianceChannels returns channels granted to any of the given
	// alliances.
	AllianceChannels(ctx context.Context, allianceIDs []int64, private bool) ([]string, error)
	// ManagedChannels returns every channel id referenced by any grant,
	// enabled or not, regardless of visibility.
	ManagedChannels(ctx context.Context) ([]string, error)
}

// AffiliationStore reads the identity's organizational attributes from the
// host system.
type AffiliationStore interface {
	RoleIDs(ctx context.Context, userID int64) ([]int64, error)
	Affiliations(ctx context.Context, userID int64) ([]Affiliation, error)
	Titles(ctx context.Context, userID int64) ([]TitleKey, error)
}

// IdentityStore reads local user accounts from the host system.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	Find(ctx context.Context, id int64) (Identity, error)
}
