package engine

import "fmt"

// PatchError reports a validation failure in an operation's patch
// arithmetic, detected before any mutation
type PatchError struct {
	Reason string
}

func (e *PatchError) Error() string {
	return "patch error: " + e.Reason
}

// ApplicationError wraps a failure that occurred after validation
// succeeded, during commit materialization. It names the commit that
// failed so the caller can decide whether to retry the whole operation
// from scratch; the engine itself never retries or resumes.
type ApplicationError struct {
	Message string // subject of the commit that failed to materialize
	Err     error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("materializing commit %q: %v", e.Message, e.Err)
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}
