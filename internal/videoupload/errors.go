package videoupload

import "fmt"

// TransferError reports a failed PUT to a signed upload URL.
type TransferError struct {
	StatusCode int
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("video transfer failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("video transfer failed: %v", e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
