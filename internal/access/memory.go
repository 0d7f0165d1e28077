package access

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process RelationStore. Tests and the dry-run mode of
// the daemon use it; production deployments use the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string]Channel
	grants   []Grant
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[string]Channel)}
}

// PutChannel registers or refreshes a channel's flags.
func (s *MemoryStore) PutChannel(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
}

// AddGrant stores a grant. A second enabled grant with the same kind, key
// and channel is rejected with ErrConflict, mirroring the persistent
// store's unique constraint.
func (s *MemoryStore) AddGrant(g Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.grants {
		if existing.Enabled && g.Enabled && sameGrantKey(existing, g) {
			return ErrConflict
		}
	}
	s.grants = append(s.grants, g)
	return nil
}

func sameGrantKey(a, b Grant) bool {
	return a.Kind == b.Kind &&
		a.ChannelID == b.ChannelID &&
		a.UserID == b.UserID &&
		a.RoleID == b.RoleID &&
		a.CorporationID == b.CorporationID &&
		a.TitleID == b.TitleID &&
		a.AllianceID == b.AllianceID
}

// channelEligible applies the visibility filter and the general-channel
// exclusion shared by every predicate.
func (s *MemoryStore) channelEligible(channelID string, private bool) bool {
	ch, ok := s.channels[channelID]
	if !ok {
		return false
	}
	return ch.IsPrivate == private && !ch.IsGeneral
}

func (s *MemoryStore) collect(private bool, match func(Grant) bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range s.grants {
		if !g.Enabled || !match(g) {
			continue
		}
		if !s.channelEligible(g.ChannelID, private) {
			continue
		}
		if _, dup := seen[g.ChannelID]; dup {
			continue
		}
		seen[g.ChannelID] = struct{}{}
		out = append(out, g.ChannelID)
	}
	return out
}

func (s *MemoryStore) PublicChannels(_ context.Context, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(private, func(g Grant) bool { return g.Kind == GrantPublic }), nil
}

func (s *MemoryStore) UserChannels(_ context.Context, userID int64, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(private, func(g Grant) bool {
		return g.Kind == GrantUser && g.UserID == userID
	}), nil
}

func (s *MemoryStore) RoleChannels(_ context.Context, roleIDs []int64, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := toInt64Set(roleIDs)
	return s.collect(private, func(g Grant) bool {
		if g.Kind != GrantRole {
			return false
		}
		_, ok := roles[g.RoleID]
		return ok
	}), nil
}

func (s *MemoryStore) CorporationChannels(_ context.Context, corporationIDs []int64, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	corps := toInt64Set(corporationIDs)
	return s.collect(private, func(g Grant) bool {
		if g.Kind != GrantCorporation {
			return false
		}
		_, ok := corps[g.CorporationID]
		return ok
	}), nil
}

func (s *MemoryStore) TitleChannels(_ context.Context, titles []TitleKey, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make(map[TitleKey]struct{}, len(titles))
	for _, t := range titles {
		keys[t] = struct{}{}
	}
	return s.collect(private, func(g Grant) bool {
		if g.Kind != GrantTitle {
			return false
		}
		// composite key: corporation and title must both agree
		_, ok := keys[TitleKey{CorporationID: g.CorporationID, TitleID: g.TitleID}]
		return ok
	}), nil
}

func (s *MemoryStore) AllianceChannels(_ context.Context, allianceIDs []int64, private bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alliances := toInt64Set(allianceIDs)
	return s.collect(private, func(g Grant) bool {
		if g.Kind != GrantAlliance {
			return false
		}
		_, ok := alliances[g.AllianceID]
		return ok
	}), nil
}

func (s *MemoryStore) ManagedChannels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, g := range s.grants {
		if _, dup := seen[g.ChannelID]; dup {
			continue
		}
		seen[g.ChannelID] = struct{}{}
		out = append(out, g.ChannelID)
	}
	return out, nil
}

func toInt64Set(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// MemoryDirectory is an in-process AffiliationStore plus IdentityStore.
type MemoryDirectory struct {
	mu           sync.RWMutex
	identities   map[int64]Identity
	roles        map[int64][]int64
	affiliations map[int64][]Affiliation
	titles       map[int64][]TitleKey
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		identities:   make(map[int64]Identity),
		roles:        make(map[int64][]int64),
		affiliations: make(map[int64][]Affiliation),
		titles:       make(map[int64][]TitleKey),
	}
}

// PutIdentity registers a local user.
func (d *MemoryDirectory) PutIdentity(id Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities[id.ID] = id
}

// SetRoles replaces the user's role memberships.
func (d *MemoryDirectory) SetRoles(userID int64, roleIDs ...int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[userID] = roleIDs
}

// SetAffiliations replaces the user's corporate affiliations.
func (d *MemoryDirectory) SetAffiliations(userID int64, affiliations ...Affiliation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.affiliations[userID] = affiliations
}

// SetTitles replaces the user's held titles.
func (d *MemoryDirectory) SetTitles(userID int64, titles ...TitleKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles[userID] = titles
}

func (d *MemoryDirectory) RoleIDs(_ context.Context, userID int64) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int64(nil), d.roles[userID]...), nil
}

func (d *MemoryDirectory) Affiliations(_ context.Context, userID int64) ([]Affiliation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Affiliation(nil), d.affiliations[userID]...), nil
}

func (d *MemoryDirectory) Titles(_ context.Context, userID int64) ([]TitleKey, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]TitleKey(nil), d.titles[userID]...), nil
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.identities {
		if strings.EqualFold(id.Email, email) {
			return id, nil
		}
	}
	return Identity{}, ErrNotFound
}

func (d *MemoryDirectory) Find(_ context.Context, id int64) (Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	identity, ok := d.identities[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}
