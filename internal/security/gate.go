package security

// Gate authorizes senders against a single allowed identity.
// An empty allowed identity puts the gate in open mode.
type Gate struct {
	allowedID string
}

// NewGate creates a Gate for allowedID. Pass "" for open mode.
func NewGate(allowedID string) *Gate {
	return &Gate{allowedID: allowedID}
}

// Authorize reports whether authorID may use the bot.
func (g *Gate) Authorize(authorID string) bool {
	if g == nil || g.allowedID == "" {
		return true
	}
	return authorID == g.allowedID
}

// Open reports whether every sender is authorized.
func (g *Gate) Open() bool {
	return g == nil || g.allowedID == ""
}
