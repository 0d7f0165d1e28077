package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetools/slacksync/internal/slack"
)

type stubFetcher struct {
	userInfoFn      func(context.Context, string) (slack.User, error)
	conversationsFn func(context.Context, ...slack.ConversationType) ([]slack.Conversation, error)
	membersFn       func(context.Context, string) ([]string, error)

	userInfoCalls int
}

func (f *stubFetcher) GetUserInfo(ctx context.Context, userID string) (slack.User, error) {
	f.userInfoCalls++
	if f.userInfoFn != nil {
		return f.userInfoFn(ctx, userID)
	}
	return slack.User{ID: userID, Name: "stub"}, nil
}

func (f *stubFetcher) ListConversations(ctx context.Context, types ...slack.ConversationType) ([]slack.Conversation, error) {
	if f.conversationsFn != nil {
		return f.conversationsFn(ctx, types...)
	}
	return nil, nil
}

func (f *stubFetcher) ListConversationMembers(ctx context.Context, channelID string) ([]string, error) {
	if f.membersFn != nil {
		return f.membersFn(ctx, channelID)
	}
	return nil, nil
}

func TestGetOrFetchMissAssemblesSnapshot(t *testing.T) {
	fetcher := &stubFetcher{
		userInfoFn: func(_ context.Context, id string) (slack.User, error) {
			return slack.User{ID: id, Name: "alice", Profile: slack.Profile{Email: "alice@corp.example"}}, nil
		},
		conversationsFn: func(_ context.Context, _ ...slack.ConversationType) ([]slack.Conversation, error) {
			return []slack.Conversation{{ID: "C2"}, {ID: "C1"}, {ID: "C3"}}, nil
		},
		membersFn: func(_ context.Context, channelID string) ([]string, error) {
			if channelID == "C3" {
				return []string{"U2"}, nil
			}
			return []string{"U1", "U2"}, nil
		},
	}
	store := NewMemoryStore()
	c := New(store, fetcher, nil)

	snapshot, err := c.GetOrFetch(context.Background(), "U1")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if snapshot.Name != "alice" || snapshot.Profile.Email != "alice@corp.example" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if len(snapshot.Conversations) != 2 || snapshot.Conversations[0] != "C1" || snapshot.Conversations[1] != "C2" {
		t.Fatalf("unexpected conversations: %v", snapshot.Conversations)
	}
	if snapshot.FetchedAt.IsZero() {
		t.Fatal("expected FetchedAt to be set")
	}
	if store.Len() != 1 {
		t.Fatalf("expected write-through store, got %d entries", store.Len())
	}
}

func TestGetOrFetchHitSkipsPlatform(t *testing.T) {
	fetcher := &stubFetcher{}
	store := NewMemoryStore()
	c := New(store, fetcher, nil)

	stored := Snapshot{ID: "U1", Name: "cached", Conversations: []string{"C1"}, FetchedAt: time.Now().UTC()}
	if err := c.Put(context.Background(), stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	snapshot, err := c.GetOrFetch(context.Background(), "U1")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if snapshot.Name != "cached" {
		t.Fatalf("expected cached snapshot, got %+v", snapshot)
	}
	if fetcher.userInfoCalls != 0 {
		t.Fatalf("cache hit must not touch the platform, saw %d calls", fetcher.userInfoCalls)
	}
}

func TestNoAutomaticExpiry(t *testing.T) {
	fetcher := &stubFetcher{}
	store := NewMemoryStore()
	c := New(store, fetcher, nil)

	old := Snapshot{ID: "U1", Name: "ancient", FetchedAt: time.Now().Add(-365 * 24 * time.Hour)}
	if err := c.Put(context.Background(), old); err != nil {
		t.Fatalf("Put: %v", err)
	}

	snapshot, err := c.GetOrFetch(context.Background(), "U1")
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if snapshot.Name != "ancient" {
		t.Fatal("a year-old entry must still be served; expiry is explicit only")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetcher := &stubFetcher{}
	store := NewMemoryStore()
	c := New(store, fetcher, nil)

	if err := c.Put(context.Background(), Snapshot{ID: "U1", Name: "cached"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Invalidate(context.Background(), "U1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, err := c.GetOrFetch(context.Background(), "U1"); err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if fetcher.userInfoCalls != 1 {
		t.Fatalf("expected refetch after invalidation, saw %d calls", fetcher.userInfoCalls)
	}
}

func TestInvalidateAbsentEntryIsNoop(t *testing.T) {
	c := New(NewMemoryStore(), &stubFetcher{}, nil)
	if err := c.Invalidate(context.Background(), "U404"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	boom := errors.New("platform down")
	fetcher := &stubFetcher{
		userInfoFn: func(context.Context, string) (slack.User, error) {
			return slack.User{}, boom
		},
	}
	c := New(NewMemoryStore(), fetcher, nil)
	if _, err := c.GetOrFetch(context.Background(), "U1"); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
