package types

// ChatRole identifies the author of a conversation message
type ChatRole string

const (
	ChatRoleHuman     ChatRole = "human"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// IsValid checks if the chat role is valid
func (r ChatRole) IsValid() bool {
	switch r {
	case ChatRoleHuman, ChatRoleAssistant, ChatRoleSystem:
		return true
	default:
		return false
	}
}

// String returns the string representation of the chat role
func (r ChatRole) String() string {
	return string(r)
}

// ChatEventType identifies the kind of event emitted during a streamed turn.
// Within one turn, thinking events may precede content but never follow it,
// and the suggestions event is always last (or absent).
type ChatEventType string

const (
	ChatEventThinking    ChatEventType = "thinking"
	ChatEventContent     ChatEventType = "content"
	ChatEventSuggestions ChatEventType = "suggestions"

	// ChatEventError is emitted by the transport layer when a turn fails
	// after the stream has been committed.
	ChatEventError ChatEventType = "error"
)

// String returns the string representation of the event type
func (t ChatEventType) String() string {
	return string(t)
}
