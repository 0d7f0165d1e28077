package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/evetools/slacksync/internal/obs"
)

const defaultBaseURL = "https://slack.com/api"

// Client is a typed wrapper over the Slack Web API, restricted to the
// operations membership sync needs. All list calls follow the continuation
// cursor until the platform reports no further pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	scopes     map[string]struct{}
	pageSize   int
	limiter    *rate.Limiter
	logger     obs.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL points the client at a different API root. Tests use it.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithPageSize caps how many entries each paginated call requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLimiter installs a client-side throttle applied before every request.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger installs the log sink.
func WithLogger(l obs.Logger) Option {
	return func(c *Client) { c.logger = obs.OrNop(l) }
}

// New builds a client for the given credential. grantedScopes lists the
// capabilities the token carries; each method checks its required scope
// against this set before issuing the request.
func New(token string, grantedScopes []string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		scopes:     make(map[string]struct{}, len(grantedScopes)),
		pageSize:   200,
		logger:     obs.NopLogger{},
	}
	for _, s := range grantedScopes {
		c.scopes[strings.TrimSpace(s)] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the common part of every Web API response.
type envelope struct {
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error"`
	Needed    string `json:"needed"`

	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (e *envelope) result() *envelope { return e }

type apiResponse interface{ result() *envelope }

// call issues one form-encoded POST and decodes the response into out.
// target names the user or channel the call acts on, for not-found errors.
func (c *Client) call(ctx context.Context, method string, params url.Values, out apiResponse, target string) error {
	if err := c.requireScope(method); err != nil {
		obs.ObserveSlackCall(method, "scope_denied")
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		obs.ObserveSlackCall(method, "transport_error")
		return fmt.Errorf("slack: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		obs.ObserveSlackCall(method, "rate_limited")
		return &RateLimitedError{Method: method, RetryAfter: retryAfter(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		obs.ObserveSlackCall(method, "decode_error")
		return &MalformedResponseError{Method: method, Field: "body"}
	}

	env := out.result()
	if !env.OK {
		obs.ObserveSlackCall(method, env.ErrorCode)
		c.logger.Debug("slack call failed", map[string]any{
			"method": method, "code": env.ErrorCode, "target": target,
		})
		return mapError(method, env.ErrorCode, env.Needed, target)
	}
	obs.ObserveSlackCall(method, "ok")
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// ListTeamMembers returns every active human workspace member. The reserved
// workspace bot, deleted accounts, bot accounts, and the credential's own
// app account are excluded.
func (c *Client) ListTeamMembers(ctx context.Context) ([]User, error) {
	var members []User
	cursor := ""
	for {
		params := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Members []User `json:"members"`
		}
		if err := c.call(ctx, methodUsersList, params, &resp, ""); err != nil {
			return nil, err
		}
		if resp.Members == nil {
			return nil, &MalformedResponseError{Method: methodUsersList, Field: "members"}
		}
		for _, m := range resp.Members {
			if m.ID == BotUserID || m.Deleted || m.IsBot || m.Profile.APIAppID != "" {
				continue
			}
			members = append(members, m)
		}
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}
}

// ListConversations returns the workspace's conversations. With no types it
// lists public and private channels.
func (c *Client) ListConversations(ctx context.Context, types ...ConversationType) ([]Conversation, error) {
	if len(types) == 0 {
		types = []ConversationType{PublicChannel, PrivateChannel}
	}
	filter := make([]string, 0, len(types))
	for _, t := range types {
		filter = append(filter, string(t))
	}

	var conversations []Conversation
	cursor := ""
	for {
		params := url.Values{
			"limit": {strconv.Itoa(c.pageSize)},
			"types": {strings.Join(filter, ",")},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Channels []Conversation `json:"channels"`
		}
		if err := c.call(ctx, methodConversationsList, params, &resp, ""); err != nil {
			return nil, err
		}
		if resp.Channels == nil {
			return nil, &MalformedResponseError{Method: methodConversationsList, Field: "channels"}
		}
		conversations = append(conversations, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return conversations, nil
		}
	}
}

// ListConversationMembers returns the user ids belonging to a conversation.
func (c *Client) ListConversationMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		params := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Members []string `json:"members"`
		}
		if err := c.call(ctx, methodConversationMembers, params, &resp, channelID); err != nil {
			return nil, err
		}
		if resp.Members == nil {
			return nil, &MalformedResponseError{Method: methodConversationMembers, Field: "members"}
		}
		members = append(members, resp.Members...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}
}

// GetUserInfo returns a single member's profile.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (User, error) {
	var resp struct {
		envelope
		User *User `json:"user"`
	}
	params := url.Values{"user": {userID}}
	if err := c.call(ctx, methodUsersInfo, params, &resp, userID); err != nil {
		return User{}, err
	}
	if resp.User == nil {
		return User{}, &MalformedResponseError{Method: methodUsersInfo, Field: "user"}
	}
	return *resp.User, nil
}

// Invite adds a user to a conversation. A user who is already a member is a
// no-op: Invite reports false with no error.
func (c *Client) Invite(ctx context.Context, userID, channelID string) (bool, error) {
	var resp struct {
		envelope
	}
	params := url.Values{"channel": {channelID}, "users": {userID}}
	err := c.call(ctx, methodConversationsInvite, params, &resp, channelID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "already_in_channel" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Kick removes a user from a conversation. A user who is not a member is a
// no-op: Kick reports false with no error.
func (c *Client) Kick(ctx context.Context, userID, channelID string) (bool, error) {
	var resp struct {
		envelope
	}
	params := url.Values{"channel": {channelID}, "user": {userID}}
	err := c.call(ctx, methodConversationsKick, params, &resp, channelID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "not_in_channel" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
