package types

// DraftKind is the discriminator for structured draft blocks embedded in
// assistant responses. The rendering client pattern-matches on it to show
// an interactive card instead of raw text.
type DraftKind string

const (
	DraftKindEmail    DraftKind = "email_draft"
	DraftKindCalendar DraftKind = "calendar_draft"
	DraftKindProtocol DraftKind = "protocol"
)

// String returns the string representation of the draft kind
func (k DraftKind) String() string {
	return string(k)
}
