package pgserver

import "fmt"

// SetupError is the single error kind reported for any provisioning
// failure: no viable execution path, storage initialization failure,
// readiness timeout, database creation failure, or an unresolvable
// account. The cases are distinguished by message, not by type. Err
// carries the underlying cause when there is one.
type SetupError struct {
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func setupErrorf(format string, args ...interface{}) error {
	return &SetupError{Reason: fmt.Sprintf(format, args...)}
}

// wrapSetupError attaches an underlying cause so callers can reach it
// through errors.Is/As.
func wrapSetupError(err error, format string, args ...interface{}) error {
	return &SetupError{Reason: fmt.Sprintf(format, args...), Err: err}
}
