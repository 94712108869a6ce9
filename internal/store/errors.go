package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no document has ever been written for a year
// (or no configuration record exists). Corrupt records report the same way;
// readers treat both as "no data".
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no record for key: %s", e.Key)
}

// ErrInternal is returned when the storage layer itself fails.
type ErrInternal struct {
	Err error
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *ErrInternal) Unwrap() error {
	return e.Err
}

func IsErrNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
