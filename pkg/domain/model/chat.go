package model

import (
	"time"

	"github.com/convivia-lab/convivia/pkg/domain/types"
)

// CaseContextMarker prefixes the system message injected into a session's
// history when a case becomes active. Injection is idempotent: the
// orchestrator scans for this marker before injecting again.
const CaseContextMarker = "[contexto del caso]"

// ChatMessage is one entry of a session's conversation log. The log is an
// opaque ordered sequence the orchestrator reads for context and appends
// to after producing a response.
type ChatMessage struct {
	Role      types.ChatRole
	Content   string
	CreatedAt time.Time
}

// ChatEvent is one typed event of a streamed turn.
type ChatEvent struct {
	Type        types.ChatEventType `json:"type"`
	Content     string              `json:"content,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

// ThinkingEvent builds a status event shown while slower work runs.
func ThinkingEvent(text string) ChatEvent {
	return ChatEvent{Type: types.ChatEventThinking, Content: text}
}

// ContentEvent builds a response text chunk event.
func ContentEvent(text string) ChatEvent {
	return ChatEvent{Type: types.ChatEventContent, Content: text}
}

// SuggestionsEvent builds the terminal suggestions event of a turn.
func SuggestionsEvent(suggestions []string) ChatEvent {
	return ChatEvent{Type: types.ChatEventSuggestions, Suggestions: suggestions}
}

// IntentClassification is the ephemeral result of routing a user turn.
// It is never persisted.
type IntentClassification struct {
	Intent     types.Intent
	Confidence float64
	Reasoning  string
}
