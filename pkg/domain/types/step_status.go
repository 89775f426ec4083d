package types

import "fmt"

// StepStatus represents the status of a protocol step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
)

// AllStepStatuses returns all valid step statuses
func AllStepStatuses() []StepStatus {
	return []StepStatus{
		StepStatusPending,
		StepStatusInProgress,
		StepStatusCompleted,
	}
}

// IsValid checks if the step status is valid
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending,
		StepStatusInProgress,
		StepStatusCompleted:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as StepStatusPending.
func (s StepStatus) Normalize() StepStatus {
	if s == "" {
		return StepStatusPending
	}
	return s
}

// IsActionable reports whether the step still needs work.
func (s StepStatus) IsActionable() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress:
		return true
	default:
		return false
	}
}

// String returns the string representation of the step status
func (s StepStatus) String() string {
	return string(s)
}

// ParseStepStatus parses a string into a StepStatus
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %s", s)
	}
	return status, nil
}
