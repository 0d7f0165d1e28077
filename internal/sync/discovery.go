package sync

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/evetools/slacksync/internal/access"
	"github.com/evetools/slacksync/internal/audit"
	"github.com/evetools/slacksync/internal/cache"
	"github.com/evetools/slacksync/internal/obs"
)

// Discovery walks the workspace's member list, associates unknown members
// with local identities by email, and refreshes every member's cached
// snapshot. The platform client already excludes the reserved workspace
// bot, deleted accounts, bot accounts, and the credential's app account.
type Discovery struct {
	client       TeamClient
	cache        SnapshotCache
	associations AssociationStore
	identities   access.IdentityStore
	logger       obs.Logger
	audit        *audit.Log
}

// NewDiscovery wires a discovery pass. logger and auditLog may be nil.
func NewDiscovery(client TeamClient, snapshotCache SnapshotCache, associations AssociationStore, identities access.IdentityStore, logger obs.Logger, auditLog *audit.Log) *Discovery {
	if auditLog == nil {
		auditLog = audit.New(nil)
	}
	return &Discovery{
		client:       client,
		cache:        snapshotCache,
		associations: associations,
		identities:   identities,
		logger:       obs.OrNop(logger),
		audit:        auditLog,
	}
}

// DiscoveryReport summarizes one pass.
type DiscoveryReport struct {
	Members    int
	Associated int
}

// Run performs one discovery pass.
func (d *Discovery) Run(ctx context.Context) (DiscoveryReport, error) {
	var report DiscoveryReport

	members, err := d.client.ListTeamMembers(ctx)
	if err != nil {
		return report, err
	}
	report.Members = len(members)

	membership, err := d.membershipIndex(ctx)
	if err != nil {
		return report, err
	}

	for _, member := range members {
		if _, err := d.associations.FindBySlackID(ctx, member.ID); errors.Is(err, ErrNoAssociation) {
			associated, err := d.associate(ctx, member.ID, member.Name, member.Profile.Email)
			if err != nil {
				return report, err
			}
			if associated {
				report.Associated++
			}
		} else if err != nil {
			return report, err
		}

		conversations := membership[member.ID]
		sort.Strings(conversations)
		snapshot := cache.Snapshot{
			ID:            member.ID,
			Name:          member.Name,
			Deleted:       member.Deleted,
			IsBot:         member.IsBot,
			Profile:       member.Profile,
			Conversations: conversations,
			FetchedAt:     time.Now().UTC(),
		}
		if err := d.cache.Put(ctx, snapshot); err != nil {
			return report, err
		}
	}

	d.logger.Log("discovery pass complete", map[string]any{
		"members":    report.Members,
		"associated": report.Associated,
	})
	return report, nil
}

// associate matches a Slack member to a local identity by email. The
// association is exclusive: any existing link for the local user is dropped
// before the new one is created.
func (d *Discovery) associate(ctx context.Context, slackID, name, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	identity, err := d.identities.FindByEmail(ctx, email)
	if errors.Is(err, access.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := d.associations.DeleteByUserID(ctx, identity.ID); err != nil {
		return false, err
	}
	if err := d.associations.Create(ctx, Association{
		UserID:    identity.ID,
		SlackID:   slackID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return false, err
	}
	_ = d.audit.Event(ctx, "association.create", map[string]any{
		"user_id":  identity.ID,
		"slack_id": slackID,
	})
	return true, nil
}

// membershipIndex builds user -> channels from one conversation scan, so a
// sweep over N members costs one pass over the workspace instead of N.
func (d *Discovery) membershipIndex(ctx context.Context) (map[string][]string, error) {
	conversations, err := d.client.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string][]string)
	for _, conversation := range conversations {
		members, err := d.client.ListConversationMembers(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			index[member] = append(index[member], conversation.ID)
		}
	}
	return index, nil
}
