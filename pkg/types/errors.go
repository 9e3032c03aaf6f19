package types

import "fmt"

// InputError reports a log file argument that cannot be processed
type InputError struct {
	Path       string
	Reason     string
	WrappedErr error
}

func (e *InputError) Error() string {
	if e.WrappedErr != nil {
		return fmt.Sprintf("log file %s %s: %v", e.Path, e.Reason, e.WrappedErr)
	}
	return fmt.Sprintf("log file %s %s", e.Path, e.Reason)
}
func (e *InputError) Unwrap() error { return e.WrappedErr }
