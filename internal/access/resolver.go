package access

import (
	"context"

	"github.com/evetools/slacksync/internal/obs"
)

// Resolver computes the channel set an identity is entitled to. Six
// predicates are evaluated independently against the relation store and
// unioned with set semantics; membership in any single predicate is
// sufficient, with no precedence between relation kinds.
type Resolver struct {
	relations    RelationStore
	affiliations AffiliationStore
	logger       obs.Logger
}

// NewResolver wires a resolver. logger may be nil.
func NewResolver(relations RelationStore, affiliations AffiliationStore, logger obs.Logger) *Resolver {
	return &Resolver{
		relations:    relations,
		affiliations: affiliations,
		logger:       obs.OrNop(logger),
	}
}

// Resolve returns the set of channel ids the identity may occupy at the
// requested visibility. An identity matching no grant resolves to the empty
// set; only store failures produce an error.
func (r *Resolver) Resolve(ctx context.Context, identity Identity, private bool) (map[string]struct{}, error) {
	channels := make(map[string]struct{})

	add := func(ids []string) {
		for _, id := range ids {
			channels[id] = struct{}{}
		}
	}

	ids, err := r.relations.PublicChannels(ctx, private)
	if err != nil {
		return nil, err
	}
	add(ids)

	ids, err = r.relations.UserChannels(ctx, identity.ID, private)
	if err != nil {
		return nil, err
	}
	add(ids)

	roleIDs, err := r.affiliations.RoleIDs(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) > 0 {
		ids, err = r.relations.RoleChannels(ctx, roleIDs, private)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	affiliations, err := r.affiliations.Affiliations(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	corporationIDs := make([]int64, 0, len(affiliations))
	allianceIDs := make([]int64, 0, len(affiliations))
	for _, a := range affiliations {
		if a.CorporationID != 0 {
			corporationIDs = append(corporationIDs, a.CorporationID)
		}
		if a.AllianceID != 0 {
			allianceIDs = append(allianceIDs, a.AllianceID)
		}
	}
	if len(corporationIDs) > 0 {
		ids, err = r.relations.CorporationChannels(ctx, corporationIDs, private)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	titles, err := r.affiliations.Titles(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if len(titles) > 0 {
		ids, err = r.relations.TitleChannels(ctx, titles, private)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	if len(allianceIDs) > 0 {
		ids, err = r.relations.AllianceChannels(ctx, allianceIDs, private)
		if err != nil {
			return nil, err
		}
		add(ids)
	}

	r.logger.Debug("resolved channel entitlement", map[string]any{
		"user_id":  identity.ID,
		"private":  private,
		"channels": len(channels),
	})
	return channels, nil
}

// ManagedChannels returns the full set of channel ids referenced by any
// grant. The reconciler only ever removes membership from these.
func (r *Resolver) ManagedChannels(ctx context.Context) (map[string]struct{}, error) {
	ids, err := r.relations.ManagedChannels(ctx)
	if err != nil {
		return nil, err
	}
	managed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		managed[id] = struct{}{}
	}
	return managed, nil
}
