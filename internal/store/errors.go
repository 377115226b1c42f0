package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key is missing or has expired.
var ErrNotFound = errors.New("store: not found")

// Error reports a stored value that could not be decoded.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: corrupt value at %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
