package storage

import (
	"errors"
	"fmt"
)

// ErrUnknownBackend indicates the configured storage backend name is not supported.
var ErrUnknownBackend = errors.New("unknown storage backend")

// SigningError reports a failure to obtain a signed URL from the storage service.
type SigningError struct {
	Op  string
	Key string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// TransferError reports a failed object write.
type TransferError struct {
	Key        string
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("storage: write %q: status %d", e.Key, e.StatusCode)
	}
	return fmt.Sprintf("storage: write %q: %v", e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// LookupError reports a failed existence check.
type LookupError struct {
	Key string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("storage: stat %q: %v", e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsSigningError reports whether err is, or wraps, a SigningError.
func IsSigningError(err error) bool {
	var signErr *SigningError
	return errors.As(err, &signErr)
}
