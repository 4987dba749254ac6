package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ReferencePrefix is the URL path prefix of every reference returned by Put.
const ReferencePrefix = "/images/"

var (
	// ErrNotFound reports a reference with no stored file behind it.
	ErrNotFound = errors.New("blob not found")

	// ErrExists reports that Put found a file already stored under the target name.
	ErrExists = errors.New("blob already exists")

	// ErrInvalidReference reports a reference that does not name a file under the store root.
	ErrInvalidReference = errors.New("invalid blob reference")
)

// IOError wraps a filesystem failure while writing, opening or removing a blob.
type IOError struct {
	Op  string
	Ref string
	Err error
}

func (e *IOError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("blob %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("blob %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// BlobStore is the image storage abstraction used by MarkerService.
type BlobStore interface {
	Put(ctx context.Context, owner string, id int64, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}
