package compass

import (
	"errors"
	"fmt"
)

// TransferError wraps a network, remote-file or disk failure during an
// acquisition. Transfers that fail this way are reported and never retried
// automatically.
type TransferError struct {
	Repo string
	File string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s/%s: %v", e.Repo, e.File, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ErrCancelled marks a transfer that was stopped on request. It is a
// distinguished outcome, not a failure: the scheduler drops the task
// silently and advances.
var ErrCancelled = errors.New("transfer cancelled")

// IsCancelled reports whether err represents a cancelled transfer.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IntegrationError wraps a failed post-download tool hook. It never affects
// the success status of the transfer that triggered the hook.
type IntegrationError struct {
	Tool string
	Err  error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s integration: %v", e.Tool, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}
