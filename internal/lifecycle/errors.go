package lifecycle

import "fmt"

// Validation error codes surfaced to the UI boundary.
const (
	CodeMissingRecallReason = "MISSING_RECALL_REASON"
	CodeMissingSolution     = "MISSING_SOLUTION"
	CodeInvalidCategory     = "INVALID_CATEGORY"
)

// ValidationError is a guard failure: local, deterministic and recoverable
// by the user correcting input. Never retried automatically.
type ValidationError struct {
	Code  string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s (%s)", e.Code, e.Field)
}

// Guard failure sentinels. Matched with errors.Is.
var (
	ErrMissingRecallReason = &ValidationError{Code: CodeMissingRecallReason, Field: "recallReason"}
	ErrMissingSolution     = &ValidationError{Code: CodeMissingSolution, Field: "solutionText"}
	ErrInvalidCategory     = &ValidationError{Code: CodeInvalidCategory, Field: "solutionCategory"}
)

// TransitionError reports an action attempted from a state that does not
// permit it, such as starting an already started job.
type TransitionError struct {
	Action string
	From   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a job in status %q", e.Action, e.From)
}
