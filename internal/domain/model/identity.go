package model

// Identity is the caller resolved from a general bearer token.
type Identity struct {
	UserID int64
	Email  string
}

// SenderGrant is the scope carried by a sender token: who may publish into which channel.
type SenderGrant struct {
	Channel    string
	AdminEmail string
}

// Permits reports whether the grant allows publishing to target.
// Channel targets must match the granted channel exactly; user and broadcast
// targets are open to any valid sender.
func (g SenderGrant) Permits(target Tag) bool {
	if target.Kind() == TagChannel {
		return target.Channel() == g.Channel
	}
	return true
}
