package sync

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/evetools/slacksync/internal/access"
	"github.com/evetools/slacksync/internal/audit"
	"github.com/evetools/slacksync/internal/obs"
	"github.com/evetools/slacksync/internal/slack"
)

// Reconciler diffs a user's entitled channel set against actual platform
// membership and issues idempotent invite and kick operations. Only managed
// channels (those referenced by at least one grant) are ever kicked from;
// manually-joined channels outside the relation tables are left alone.
type Reconciler struct {
	resolver     *access.Resolver
	cache        SnapshotCache
	client       PlatformClient
	associations AssociationStore
	general      GeneralChannelPolicy
	retryCap     int
	retryBase    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       obs.Logger
	audit        *audit.Log
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithRetryCap bounds rate-limit retries per channel operation.
func WithRetryCap(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.retryCap = n
		}
	}
}

// WithRetryBase sets the backoff unit used when the platform gives no
// Retry-After hint.
func WithRetryBase(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.retryBase = d
		}
	}
}

// WithGeneralChannel installs the general-channel policy.
func WithGeneralChannel(channelID string) ReconcilerOption {
	return func(r *Reconciler) {
		r.general = GeneralChannelPolicy{ChannelID: channelID}
	}
}

// withSleep overrides the retry clock. Tests use it.
func withSleep(fn func(ctx context.Context, d time.Duration) error) ReconcilerOption {
	return func(r *Reconciler) { r.sleep = fn }
}

// NewReconciler wires a reconciler. logger and auditLog may be nil.
func NewReconciler(resolver *access.Resolver, snapshotCache SnapshotCache, client PlatformClient, associations AssociationStore, logger obs.Logger, auditLog *audit.Log, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		resolver:     resolver,
		cache:        snapshotCache,
		client:       client,
		associations: associations,
		retryCap:     3,
		retryBase:    time.Second,
		sleep:        ctxSleep,
		logger:       obs.OrNop(logger),
		audit:        auditLog,
	}
	if r.audit == nil {
		r.audit = audit.New(nil)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconcile brings one Slack user's membership in line with entitlement.
func (r *Reconciler) Reconcile(ctx context.Context, slackUserID string) (Result, error) {
	result := Result{SlackUserID: slackUserID}

	association, err := r.associations.FindBySlackID(ctx, slackUserID)
	if err != nil {
		return result, err
	}
	identity := access.Identity{ID: association.UserID}

	desired := make(map[string]struct{})
	for _, private := range []bool{false, true} {
		channels, err := r.resolver.Resolve(ctx, identity, private)
		if err != nil {
			return result, err
		}
		for id := range channels {
			desired[id] = struct{}{}
		}
	}

	snapshot, err := r.cache.GetOrFetch(ctx, slackUserID)
	if err != nil {
		return result, err
	}
	actual := make(map[string]struct{}, len(snapshot.Conversations))
	for _, id := range snapshot.Conversations {
		actual[id] = struct{}{}
	}

	managed, err := r.resolver.ManagedChannels(ctx)
	if err != nil {
		return result, err
	}

	r.general.Strip(desired)
	r.general.Strip(actual)

	var toInvite, toKick []string
	for id := range desired {
		if _, member := actual[id]; !member {
			toInvite = append(toInvite, id)
		}
	}
	for id := range actual {
		if _, isManaged := managed[id]; !isManaged {
			continue
		}
		if _, wanted := desired[id]; !wanted {
			toKick = append(toKick, id)
		}
	}
	sort.Strings(toInvite)
	sort.Strings(toKick)

	for _, channelID := range toInvite {
		if err := r.withRetry(ctx, func() error {
			_, err := r.client.Invite(ctx, slackUserID, channelID)
			return err
		}); err != nil {
			obs.ObserveMembershipOp("invite", "error")
			result.Errors = append(result.Errors, OpError{
				Op: "invite", ChannelID: channelID, Err: err,
				Retryable: slack.IsRateLimited(err),
			})
			continue
		}
		obs.ObserveMembershipOp("invite", "ok")
		result.Invited = append(result.Invited, channelID)
		actual[channelID] = struct{}{}
		_ = r.audit.Event(ctx, "membership.invite", map[string]any{
			"slack_id": slackUserID, "channel": channelID,
		})
	}

	for _, channelID := range toKick {
		if err := r.withRetry(ctx, func() error {
			_, err := r.client.Kick(ctx, slackUserID, channelID)
			return err
		}); err != nil {
			obs.ObserveMembershipOp("kick", "error")
			result.Errors = append(result.Errors, OpError{
				Op: "kick", ChannelID: channelID, Err: err,
				Retryable: slack.IsRateLimited(err),
			})
			continue
		}
		obs.ObserveMembershipOp("kick", "ok")
		result.Kicked = append(result.Kicked, channelID)
		delete(actual, channelID)
		_ = r.audit.Event(ctx, "membership.kick", map[string]any{
			"slack_id": slackUserID, "channel": channelID,
		})
	}

	conversations := make([]string, 0, len(actual))
	for id := range actual {
		conversations = append(conversations, id)
	}
	sort.Strings(conversations)
	snapshot.Conversations = conversations
	snapshot.FetchedAt = time.Now().UTC()
	if err := r.cache.Put(ctx, snapshot); err != nil {
		return result, err
	}

	r.logger.Log("reconciled user", map[string]any{
		"slack_id": slackUserID,
		"invited":  len(result.Invited),
		"kicked":   len(result.Kicked),
		"errors":   len(result.Errors),
	})
	return result, nil
}

// withRetry retries only rate-limited failures, honoring the platform's
// Retry-After hint when present, up to the configured attempt cap. Any
// other error is terminal for the operation.
func (r *Reconciler) withRetry(ctx context.Context, op func() error) error {
	var attempt int
	for {
		err := op()
		if err == nil {
			return nil
		}
		var rl *slack.RateLimitedError
		if !errors.As(err, &rl) {
			return err
		}
		attempt++
		if attempt >= r.retryCap {
			return err
		}
		obs.ObserveRateLimitRetry()
		wait := rl.RetryAfter
		if wait <= 0 {
			wait = r.retryBase * time.Duration(attempt)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
