package cache

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/evetools/slacksync/internal/obs"
	"github.com/evetools/slacksync/internal/slack"
)

// Snapshot is a cached point-in-time view of a Slack user's profile and
// channel membership. The stored document follows the shared keyspace
// convention: one JSON object per external user id.
type Snapshot struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Deleted       bool          `json:"deleted"`
	IsBot         bool          `json:"is_bot"`
	Profile       slack.Profile `json:"profile"`
	Conversations []string      `json:"conversations"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// ErrNotCached is returned by Store.Get for an absent key.
var ErrNotCached = errors.New("cache: entry not present")

// Store persists snapshots keyed by Slack user id.
type Store interface {
	Get(ctx context.Context, slackUserID string) (Snapshot, error)
	Set(ctx context.Context, snapshot Snapshot) error
	Delete(ctx context.Context, slackUserID string) error
}

// Fetcher is the subset of the platform client the cache needs to assemble
// a snapshot on a miss.
type Fetcher interface {
	GetUserInfo(ctx context.Context, userID string) (slack.User, error)
	ListConversations(ctx context.Context, types ...slack.ConversationType) ([]slack.Conversation, error)
	ListConversationMembers(ctx context.Context, channelID string) ([]string, error)
}

// MembershipCache is a write-through cache with no automatic expiry.
// Correctness depends on callers: every operation that changes platform
// state must follow up with Put or Invalidate. Entries are never aged out
// on their own, so a missed write-back leaves a stale snapshot in place
// until the next explicit refresh.
type MembershipCache struct {
	store  Store
	client Fetcher
	logger obs.Logger
}

// New wires a membership cache. logger may be nil.
func New(store Store, client Fetcher, logger obs.Logger) *MembershipCache {
	return &MembershipCache{
		store:  store,
		client: client,
		logger: obs.OrNop(logger),
	}
}

// GetOrFetch returns the cached snapshot verbatim on a hit. On a miss it
// fetches the user's profile and conversation membership, stores the
// assembled snapshot, and returns it.
func (c *MembershipCache) GetOrFetch(ctx context.Context, slackUserID string) (Snapshot, error) {
	snapshot, err := c.store.Get(ctx, slackUserID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, ErrNotCached) {
		return Snapshot{}, err
	}

	user, err := c.client.GetUserInfo(ctx, slackUserID)
	if err != nil {
		return Snapshot{}, err
	}
	conversations, err := c.membershipOf(ctx, slackUserID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot = Snapshot{
		ID:            user.ID,
		Name:          user.Name,
		Deleted:       user.Deleted,
		IsBot:         user.IsBot,
		Profile:       user.Profile,
		Conversations: conversations,
		FetchedAt:     time.Now().UTC(),
	}
	if err := c.store.Set(ctx, snapshot); err != nil {
		return Snapshot{}, err
	}
	c.logger.Debug("snapshot fetched", map[string]any{
		"slack_id":      slackUserID,
		"conversations": len(conversations),
	})
	return snapshot, nil
}

// Put overwrites the stored snapshot. Reconciliation calls it after every
// membership write-back.
func (c *MembershipCache) Put(ctx context.Context, snapshot Snapshot) error {
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}
	return c.store.Set(ctx, snapshot)
}

// Invalidate drops the entry so the next GetOrFetch refetches it.
func (c *MembershipCache) Invalidate(ctx context.Context, slackUserID string) error {
	err := c.store.Delete(ctx, slackUserID)
	if errors.Is(err, ErrNotCached) {
		return nil
	}
	return err
}

// membershipOf scans every conversation's member list for the user. The
// client lacks a per-user conversations call, so membership is derived the
// same way the inspection endpoint derives it.
func (c *MembershipCache) membershipOf(ctx context.Context, slackUserID string) ([]string, error) {
	conversations, err := c.client.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	var memberOf []string
	for _, conversation := range conversations {
		members, err := c.client.ListConversationMembers(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if member == slackUserID {
				memberOf = append(memberOf, conversation.ID)
				break
			}
		}
	}
	sort.Strings(memberOf)
	return memberOf, nil
}
