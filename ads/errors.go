package ads

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("ad not found")
	ErrForbidden             = errors.New("ad belongs to another user")
	ErrBusy                  = errors.New("save already in progress for this ad")
	ErrZeroProfitUnconfirmed = errors.New("zero profit must be confirmed")
	ErrConfirmationRequired  = errors.New("deletion must be confirmed")
)

// ValidationError reports the first invalid form field
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistError wraps a failed write. Its message carries the innermost
// cause so the user sees what the database actually rejected.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	msg := fmt.Sprintf("database error while %s ad: %v", e.Op, e.Err)
	if cause := rootCause(e.Err); cause != e.Err {
		msg += "; details: " + cause.Error()
	}
	return msg
}

func (e *PersistError) Unwrap() error { return e.Err }

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
