package slack

// User is a workspace member as reported by users.list / users.info.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Deleted bool    `json:"deleted"`
	IsBot   bool    `json:"is_bot"`
	Profile Profile `json:"profile"`
}

// Profile carries the subset of profile fields the sync needs.
type Profile struct {
	Email    string `json:"email,omitempty"`
	RealName string `json:"real_name,omitempty"`
	// APIAppID is set on the credential's own app account.
	APIAppID string `json:"api_app_id,omitempty"`
}

// Conversation is a channel as reported by conversations.list.
type Conversation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsChannel  bool   `json:"is_channel"`
	IsPrivate  bool   `json:"is_private"`
	IsGeneral  bool   `json:"is_general"`
	NumMembers int    `json:"num_members"`
}

// ConversationType filters conversations.list.
type ConversationType string

const (
	PublicChannel  ConversationType = "public_channel"
	PrivateChannel ConversationType = "private_channel"
)

// BotUserID is the reserved workspace bot present in every team. It never
// appears in ListTeamMembers output.
const BotUserID = "USLACKBOT"
