package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError reports a transport or file read failure for one source.
type FetchError struct {
	Source Source
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch manifest (%s): %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a malformed manifest body.
type ParseError struct {
	Source Source
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse manifest (%s): %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrNoManifest is returned when no source was configured or usable and
// nothing more specific went wrong.
var ErrNoManifest = errors.New("no manifest loaded")

// IsFetchError reports whether err contains a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsParseError reports whether err contains a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Detail renders err for status payloads, joining multiple causes with " | ".
func Detail(err error) string {
	if err == nil {
		return ""
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		parts := make([]string, 0, len(j.Unwrap()))
		for _, e := range j.Unwrap() {
			parts = append(parts, e.Error())
		}
		return strings.Join(parts, " | ")
	}
	return err.Error()
}
