package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	imageExtension = ".jpg"
	maxOwnerSlug   = 64
)

// LocalDir stores marker images as flat files in one directory.
type LocalDir struct {
	root string
}

// NewLocalDir creates a store rooted at root, creating the directory if needed.
func NewLocalDir(root string) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("images directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Err: err}
	}
	return &LocalDir{root: abs}, nil
}

// Root returns the absolute directory holding the images.
func (d *LocalDir) Root() string {
	if d == nil {
		return ""
	}
	return d.root
}

// Put writes r to {slug(owner)}-{id}.jpg and returns its reference.
// Put never replaces a stored file; a taken name yields ErrExists.
func (d *LocalDir) Put(ctx context.Context, owner string, id int64, r io.Reader) (string, error) {
	if d == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := Filename(owner, id)
	ref := ReferencePrefix + name

	tmp, err := os.CreateTemp(filepath.Join(d.root, "tmp"), "put-*")
	if err != nil {
		return "", &IOError{Op: "put", Ref: ref, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return "", &IOError{Op: "put", Ref: ref, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", &IOError{Op: "put", Ref: ref, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", &IOError{Op: "put", Ref: ref, Err: err}
	}

	// Link fails when the target exists, unlike Rename.
	err = os.Link(tmpPath, filepath.Join(d.root, name))
	_ = os.Remove(tmpPath)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", &IOError{Op: "put", Ref: ref, Err: ErrExists}
		}
		return "", &IOError{Op: "put", Ref: ref, Err: err}
	}
	return ref, nil
}

// Open returns a reader for the blob behind ref.
func (d *LocalDir) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.pathFromRef(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &IOError{Op: "open", Ref: ref, Err: err}
	}
	return f, nil
}

// Delete removes the blob behind ref. Missing files are ignored.
func (d *LocalDir) Delete(ctx context.Context, ref string) error {
	if d == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.pathFromRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "delete", Ref: ref, Err: err}
	}
	return nil
}

// Filename derives the stored filename for an owner label and marker id.
// The id follows the last '-', so distinct (owner, id) pairs never share a name.
func Filename(owner string, id int64) string {
	digits := strconv.FormatInt(id, 10)
	slug := ownerSlug(owner)
	if slug == "" {
		return digits + imageExtension
	}
	return slug + "-" + digits + imageExtension
}

// Reference returns the reference Put would return for owner and id.
func Reference(owner string, id int64) string {
	return ReferencePrefix + Filename(owner, id)
}

// ownerSlug keeps lowercase ASCII letters, digits, '-' and '_' so the
// client-controlled label can never name a path outside the root.
func ownerSlug(owner string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(owner) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= maxOwnerSlug {
			break
		}
	}
	return b.String()
}

func (d *LocalDir) pathFromRef(ref string) (string, error) {
	name := strings.TrimSpace(ref)
	name = strings.TrimPrefix(name, ReferencePrefix)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidReference
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", ErrInvalidReference
	}
	if !strings.HasSuffix(name, imageExtension) {
		return "", ErrInvalidReference
	}
	return filepath.Join(d.root, name), nil
}
