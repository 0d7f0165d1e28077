package sync

// GeneralChannelPolicy makes the handling of the workspace's always-open
// default channel an explicit rule rather than a side effect of grant
// evaluation: the general channel is governed by platform defaults, so the
// reconciler never invites to it and never kicks from it, and it is
// stripped from both the desired and the actual set before diffing.
type GeneralChannelPolicy struct {
	ChannelID string
}

// Allows reports whether the reconciler may operate on the channel.
func (p GeneralChannelPolicy) Allows(channelID string) bool {
	return p.ChannelID == "" || channelID != p.ChannelID
}

// Strip removes the general channel from a set in place.
func (p GeneralChannelPolicy) Strip(set map[string]struct{}) {
	if p.ChannelID != "" {
		delete(set, p.ChannelID)
	}
}
