package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalDirPutOpenDelete(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()

	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'f', 'i', 'f'}
	ref, err := dir.Put(ctx, "bob", 100002, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "/images/bob-100002.jpg" {
		t.Fatalf("expected /images/bob-100002.jpg, got %q", ref)
	}
	if ref != Reference("bob", 100002) {
		t.Fatalf("expected reconstructible reference %q, got %q", Reference("bob", 100002), ref)
	}

	rc, err := dir.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("expected identical bytes, got %v", data)
	}

	if err := dir.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := dir.Delete(ctx, ref); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := dir.Open(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalDirCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "images")
	if _, err := NewLocalDir(root); err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected root directory to exist, err=%v", err)
	}
}

func TestLocalDirRequiresRoot(t *testing.T) {
	if _, err := NewLocalDir("  "); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestFilenameSlugsOwner(t *testing.T) {
	tests := []struct {
		owner string
		want  string
	}{
		{owner: "bob", want: "bob-100002.jpg"},
		{owner: "Alice Smith", want: "alicesmith-100002.jpg"},
		{owner: "../../etc/passwd", want: "etcpasswd-100002.jpg"},
		{owner: "", want: "100002.jpg"},
		{owner: "Guest", want: "guest-100002.jpg"},
		{owner: "a-1", want: "a-1-100002.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			if got := Filename(tt.owner, 100002); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFilenameSeparatesOwnerDigitsFromID(t *testing.T) {
	pairs := []struct {
		owner string
		id    int64
	}{
		{owner: "a1", id: 100000},
		{owner: "a", id: 1100000},
		{owner: "a-1", id: 100000},
		{owner: "a", id: 100000},
		{owner: "", id: 1100000},
	}
	seen := make(map[string]string)
	for _, p := range pairs {
		name := Filename(p.owner, p.id)
		key := fmt.Sprintf("%s/%d", p.owner, p.id)
		if other, ok := seen[name]; ok {
			t.Fatalf("%s and %s share filename %q", other, key, name)
		}
		seen[name] = key
	}
}

func TestLocalDirPutDoesNotReplaceExisting(t *testing.T) {
	root := t.TempDir()
	dir, err := NewLocalDir(root)
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()

	ref, err := dir.Put(ctx, "bob", 100500, strings.NewReader("original"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := dir.Put(ctx, "bob", 100500, strings.NewReader("intruder")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	rc, err := dir.Open(ctx, ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("expected original bytes kept, got %q", data)
	}

	leftovers, err := os.ReadDir(filepath.Join(root, "tmp"))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files removed, got %d", len(leftovers))
	}
}

func TestLocalDirTraversalOwnerStaysInRoot(t *testing.T) {
	root := t.TempDir()
	dir, err := NewLocalDir(root)
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ref, err := dir.Put(context.Background(), "../../evil", 7, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, strings.TrimPrefix(ref, ReferencePrefix))); err != nil {
		t.Fatalf("expected file inside root: %v", err)
	}
}

func TestLocalDirRejectsInvalidReferences(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	for _, ref := range []string{"", "/images/", "/images/../secret", "../x.jpg", "/images/a/b.jpg", `/images/a\b.jpg`, "/images/tmp", "/Users/aman/Desktop/4towers/images/bob100000.jpg"} {
		if _, err := dir.Open(context.Background(), ref); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("open %q: expected ErrInvalidReference, got %v", ref, err)
		}
		if err := dir.Delete(context.Background(), ref); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("delete %q: expected ErrInvalidReference, got %v", ref, err)
		}
	}
}

func TestLocalDirAcceptsBareFilename(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()
	if _, err := dir.Put(ctx, "amy", 100000, strings.NewReader("img")); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := dir.Open(ctx, "amy-100000.jpg")
	if err != nil {
		t.Fatalf("open bare filename: %v", err)
	}
	rc.Close()
}

func TestLocalDirHonorsCanceledContext(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dir.Put(ctx, "bob", 1, strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIOErrorUnwraps(t *testing.T) {
	err := &IOError{Op: "delete", Ref: "/images/a.jpg", Err: os.ErrPermission}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatal("expected IOError to unwrap to the fs error")
	}
	if !strings.Contains(err.Error(), "/images/a.jpg") {
		t.Fatalf("expected ref in message, got %q", err.Error())
	}
}
