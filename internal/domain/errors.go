package domain

import (
	"errors"
	"fmt"
)

// ErrEventNotFound is returned by store lookups and point transactions when
// the record does not exist (or no longer exists).
var ErrEventNotFound = errors.New("event not found")

// StoreConfigError wraps a store failure caused by missing schema (tables or
// indexes), as opposed to a transient failure. The sweep treats it as a
// tick-level abort and logs it loudly; per-event transient errors are merely
// skipped.
type StoreConfigError struct {
	Err error
}

func (e *StoreConfigError) Error() string {
	return fmt.Sprintf("store configuration: %v", e.Err)
}

func (e *StoreConfigError) Unwrap() error {
	return e.Err
}
