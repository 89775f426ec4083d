package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrProtocolNotFound = goerr.New("protocol not found")
	ErrStepNotFound     = goerr.New("step not found")
	ErrCaseNotFound     = goerr.New("case not found")

	// Protocol generation gate errors
	ErrProtocolActive = goerr.New("protocol already active")
	ErrCaseNotReady   = goerr.New("case is missing required facts")

	// Other errors
	ErrUnknownSchool      = goerr.New("unknown school")
	ErrEmptyModelResponse = goerr.New("model returned empty response")
)

// Context keys for error values
const (
	CaseIDKey    = "case_id"
	SessionIDKey = "session_id"
	StepIDKey    = "step_id"
)
