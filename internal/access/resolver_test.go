package access

import (
	"context"
	"testing"
)

func fixtureStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	store.PutChannel(Channel{ID: "C1", Name: "ops"})
	store.PutChannel(Channel{ID: "C2", Name: "intel"})
	store.PutChannel(Channel{ID: "C3", Name: "leadership", IsPrivate: true})
	store.PutChannel(Channel{ID: "CGEN", Name: "general", IsGeneral: true})
	return store
}

func mustAdd(t *testing.T, store *MemoryStore, g Grant) {
	t.Helper()
	if err := store.AddGrant(g); err != nil {
		t.Fatalf("AddGrant(%+v): %v", g, err)
	}
}

func TestResolveUnionAcrossRelationKinds(t *testing.T) {
	store := fixtureStore(t)
	mustAdd(t, store, Grant{Kind: GrantRole, ChannelID: "C1", RoleID: 10, Enabled: true})
	mustAdd(t, store, Grant{Kind: GrantCorporation, ChannelID: "C1", CorporationID: 99, Enabled: true})
	mustAdd(t, store, Grant{Kind: GrantCorporation, ChannelID: "C2", CorporationID: 99, Enabled: true})

	directory := NewMemoryDirectory()
	directory.PutIdentity(Identity{ID: 1, Email: "u@corp.example"})
	directory.SetRoles(1, 10)
	directory.SetAffiliations(1, Affiliation{CorporationID: 99})

	resolver := NewResolver(store, directory, nil)
	channels, err := resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected {C1, C2}, got %v", channels)
	}
	for _, want := range []string{"C1", "C2"} {
		if _, ok := channels[want]; !ok {
			t.Fatalf("missing %s in %v", want, channels)
		}
	}
}

func TestResolveTitleCompositeKey(t *testing.T) {
	store := fixtureStore(t)
	// grant defined for title 7 under corporation 200
	mustAdd(t, store, Grant{Kind: GrantTitle, ChannelID: "C1", CorporationID: 200, TitleID: 7, Enabled: true})

	directory := NewMemoryDirectory()
	// identity holds title 7, but in corporation 100
	directory.SetTitles(1, TitleKey{CorporationID: 100, TitleID: 7})

	resolver := NewResolver(store, directory, nil)
	channels, err := resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("title id alone must not satisfy the grant, got %v", channels)
	}

	// the same title under the grant's corporation does match
	directory.SetTitles(1, TitleKey{CorporationID: 200, TitleID: 7})
	channels, err = resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := channels["C1"]; !ok || len(channels) != 1 {
		t.Fatalf("expected {C1}, got %v", channels)
	}
}

func TestResolveFiltersVisibilityAndGeneral(t *testing.T) {
	store := fixtureStore(t)
	mustAdd(t, store, Grant{Kind: GrantPublic, ChannelID: "C1", Enabled: true})
	mustAdd(t, store, Grant{Kind: GrantPublic, ChannelID: "C3", Enabled: true})
	mustAdd(t, store, Grant{Kind: GrantPublic, ChannelID: "CGEN", Enabled: true})

	resolver := NewResolver(store, NewMemoryDirectory(), nil)

	public, err := resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve public: %v", err)
	}
	if _, ok := public["C1"]; !ok || len(public) != 1 {
		t.Fatalf("expected public set {C1}, got %v", public)
	}
	if _, ok := public["CGEN"]; ok {
		t.Fatal("general channel must never appear in grant evaluation")
	}

	private, err := resolver.Resolve(context.Background(), Identity{ID: 1}, true)
	if err != nil {
		t.Fatalf("Resolve private: %v", err)
	}
	if _, ok := private["C3"]; !ok || len(private) != 1 {
		t.Fatalf("expected private set {C3}, got %v", private)
	}
}

func TestResolveExcludesDisabledGrants(t *testing.T) {
	store := fixtureStore(t)
	mustAdd(t, store, Grant{Kind: GrantUser, ChannelID: "C1", UserID: 1, Enabled: false})
	mustAdd(t, store, Grant{Kind: GrantUser, ChannelID: "C2", UserID: 1, Enabled: true})

	resolver := NewResolver(store, NewMemoryDirectory(), nil)
	channels, err := resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := channels["C2"]; !ok || len(channels) != 1 {
		t.Fatalf("expected {C2}, got %v", channels)
	}
}

func TestResolveAllianceThroughAffiliation(t *testing.T) {
	store := fixtureStore(t)
	mustAdd(t, store, Grant{Kind: GrantAlliance, ChannelID: "C2", AllianceID: 5000, Enabled: true})

	directory := NewMemoryDirectory()
	directory.SetAffiliations(1, Affiliation{CorporationID: 99, AllianceID: 5000})

	resolver := NewResolver(store, directory, nil)
	channels, err := resolver.Resolve(context.Background(), Identity{ID: 1}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := channels["C2"]; !ok {
		t.Fatalf("expected alliance grant to apply, got %v", channels)
	}
}

func TestResolveEmptyForUnknownIdentity(t *testing.T) {
	resolver := NewResolver(fixtureStore(t), NewMemoryDirectory(), nil)
	channels, err := resolver.Resolve(context.Background(), Identity{ID: 42}, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("expected empty set, got %v", channels)
	}
}

func TestAddGrantRejectsDuplicates(t *testing.T) {
	store := fixtureStore(t)
	g := Grant{Kind: GrantCorporation, ChannelID: "C1", CorporationID: 99, Enabled: true}
	if err := store.AddGrant(g); err != nil {
		t.Fatalf("first AddGrant: %v", err)
	}
	if err := store.AddGrant(g); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestManagedChannelsIncludesDisabledAndAllVisibilities(t *testing.T) {
	store := fixtureStore(t)
	mustAdd(t, store, Grant{Kind: GrantPublic, ChannelID: "C1", Enabled: true})
	mustAdd(t, store, Grant{Kind: GrantUser, ChannelID: "C3", UserID: 2, Enabled: false})

	resolver := NewResolver(store, NewMemoryDirectory(), nil)
	managed, err := resolver.ManagedChannels(context.Background())
	if err != nil {
		t.Fatalf("ManagedChannels: %v", err)
	}
	if len(managed) != 2 {
		t.Fatalf("expected {C1, C3}, got %v", managed)
	}
}
