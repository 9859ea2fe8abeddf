package translate

import (
	"context"
	"errors"
	"fmt"
)

// Request describes one translation call.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

// Translator defines a pluggable translation backend.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// PermanentError marks a backend failure that retrying cannot fix, such
// as rejected credentials or a malformed request. The worker pool aborts
// the whole phase when it sees one.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the pool treats it as fatal. Returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its
// chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
