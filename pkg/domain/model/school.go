package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// School represents a school's identity
type School struct {
	ID   string
	Name string
}

// ErrSchoolNotFound is returned when a school is not found in the registry
var ErrSchoolNotFound = goerr.New("school not found")

// SchoolEntry holds a school's identity and its operational settings:
// the storage bucket holding its case documents, the search scope for its
// own policy corpus, and an optional Slack channel for protocol notices.
type SchoolEntry struct {
	School         School
	Bucket         string // object storage bucket for case documents
	SlackChannelID string // empty disables notifications
}

// SchoolRegistry holds school configurations.
// It does not hold Repository or UseCase instances (settings only).
type SchoolRegistry struct {
	entries map[string]*SchoolEntry
	order   []string // preserves registration order
}

// NewSchoolRegistry creates a new empty SchoolRegistry
func NewSchoolRegistry() *SchoolRegistry {
	return &SchoolRegistry{
		entries: make(map[string]*SchoolEntry),
	}
}

// Register adds a school entry to the registry
func (r *SchoolRegistry) Register(entry *SchoolEntry) {
	if _, exists := r.entries[entry.School.ID]; !exists {
		r.order = append(r.order, entry.School.ID)
	}
	r.entries[entry.School.ID] = entry
}

// Get retrieves a school entry by ID
func (r *SchoolRegistry) Get(schoolID string) (*SchoolEntry, error) {
	entry, ok := r.entries[schoolID]
	if !ok {
		return nil, goerr.Wrap(ErrSchoolNotFound, "school not found",
			goerr.V("school_id", schoolID))
	}
	return entry, nil
}

// List returns all registered school entries in registration order
func (r *SchoolRegistry) List() []*SchoolEntry {
	result := make([]*SchoolEntry, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.entries[id])
	}
	return result
}
