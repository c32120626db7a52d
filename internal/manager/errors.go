package manager

import "errors"

// ErrNoSource is returned by Bootstrap when the manager has no manifest source.
var ErrNoSource = errors.New("manager: no manifest source configured")

// bootstrapError wraps a failed startup load. The server still starts with
// whatever table could be built.
type bootstrapError struct{ err error }

func (e bootstrapError) Error() string { return "initial manifest load: " + e.err.Error() }

func (e bootstrapError) Unwrap() error { return e.err }

// IsBootstrapError reports whether err came from the startup manifest load.
func IsBootstrapError(err error) bool {
	var be bootstrapError
	return errors.As(err, &be)
}
