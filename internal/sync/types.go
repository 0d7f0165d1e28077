package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evetools/slacksync/internal/cache"
	"github.com/evetools/slacksync/internal/slack"
)

// Association links a local user account to a Slack member. The link is
// exclusive in both directions: creating a new association first removes
// any existing one for the same local user.
type Association struct {
	UserID    int64
	SlackID   string
	Name      string
	CreatedAt time.Time
}

// ErrNoAssociation is returned when a Slack user has no local counterpart.
var ErrNoAssociation = errors.New("sync: no association for slack user")

// AssociationStore persists user associations.
type AssociationStore interface {
	FindBySlackID(ctx context.Context, slackID string) (Association, error)
	FindByUserID(ctx context.Context, userID int64) (Association, error)
	// Create inserts the association after removing any existing one for
	// the same local user.
	Create(ctx context.Context, association Association) error
	DeleteByUserID(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]Association, error)
}

// PlatformClient is the mutation surface the reconciler needs.
type PlatformClient interface {
	Invite(ctx context.Context, userID, channelID string) (bool, error)
	Kick(ctx context.Context, userID, channelID string) (bool, error)
}

// SnapshotCache is the cache surface shared by reconciler and discovery.
type SnapshotCache interface {
	GetOrFetch(ctx context.Context, slackUserID string) (cache.Snapshot, error)
	Put(ctx context.Context, snapshot cache.Snapshot) error
}

// TeamClient is the read surface discovery needs.
type TeamClient interface {
	ListTeamMembers(ctx context.Context) ([]slack.User, error)
	ListConversations(ctx context.Context, types ...slack.ConversationType) ([]slack.Conversation, error)
	ListConversationMembers(ctx context.Context, channelID string) ([]string, error)
}

// OpError records a failed channel operation. Retryable marks rate-limit
// failures that exhausted the attempt cap; the rest are terminal.
type OpError struct {
	Op        string // "invite" or "kick"
	ChannelID string
	Err       error
	Retryable bool
}

func (e OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ChannelID, e.Err)
}

func (e OpError) Unwrap() error { return e.Err }

// Result is the outcome of reconciling one Slack user. A run with errors is
// still a completed run: failures are accumulated per channel operation,
// never silently dropped and never aborting the rest of the batch.
type Result struct {
	SlackUserID string
	Invited     []string
	Kicked      []string
	Errors      []OpError
}
