package store

import (
	"errors"
	"fmt"
)

// ErrDuplicateID reports an insert that collided with an existing marker id.
var ErrDuplicateID = errors.New("duplicate marker id")

// StorageError wraps a database failure other than an id collision.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
