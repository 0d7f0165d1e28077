package slack

// requiredScopes maps each Web API method to the token scope it needs.
// Every call asserts its entry against the configured scope set before the
// request goes out, so a misconfigured token fails fast and locally.
var requiredScopes = map[string]string{
	methodUsersList:           "users:read",
	methodUsersInfo:           "users:read",
	methodConversationsList:   "channels:read",
	methodConversationMembers: "channels:read",
	methodConversationsInvite: "channels:manage",
	methodConversationsKick:   "channels:manage",
}

const (
	methodUsersList           = "users.list"
	methodUsersInfo           = "users.info"
	methodConversationsList   = "conversations.list"
	methodConversationMembers = "conversations.members"
	methodConversationsInvite = "conversations.invite"
	methodConversationsKick   = "conversations.kick"
)

func (c *Client) requireScope(method string) error {
	scope, ok := requiredScopes[method]
	if !ok {
		return nil
	}
	if _, granted := c.scopes[scope]; !granted {
		return &ScopeError{Method: method, Scope: scope}
	}
	return nil
}
