package domain

import "time"

// Role identifies the author of a chat turn.
type Role string

// Available roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Turn is one entry in a chat session.
type Turn struct {
	// Role is the author of the turn.
	Role Role

	// Content is the turn text.
	Content string

	// Position is the ordinal position in the session, starting at zero.
	Position int

	// Citations are the sources of an assistant answer.
	Citations []Citation

	// Incomplete marks an answer whose stream ended early.
	Incomplete bool

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}
