package types

import "fmt"

// Intent represents the execution path a user turn is routed to
type Intent string

const (
	IntentDocumentAnalysis Intent = "DOCUMENT_ANALYSIS"
	IntentSimpleQA         Intent = "SIMPLE_QA"
	IntentToolRequired     Intent = "TOOL_REQUIRED"
	IntentCaseQuery        Intent = "CASE_QUERY"
	IntentCaseCreation     Intent = "CASE_CREATION"
)

// AllIntents returns all valid intents
func AllIntents() []Intent {
	return []Intent{
		IntentDocumentAnalysis,
		IntentSimpleQA,
		IntentToolRequired,
		IntentCaseQuery,
		IntentCaseCreation,
	}
}

// IsValid checks if the intent is valid
func (i Intent) IsValid() bool {
	switch i {
	case IntentDocumentAnalysis,
		IntentSimpleQA,
		IntentToolRequired,
		IntentCaseQuery,
		IntentCaseCreation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}

// ParseIntent parses a string into an Intent
func ParseIntent(s string) (Intent, error) {
	intent := Intent(s)
	if !intent.IsValid() {
		return "", fmt.Errorf("invalid intent: %s", s)
	}
	return intent, nil
}
