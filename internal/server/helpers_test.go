package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"towermap/internal/blobstore"
	"towermap/internal/models"
	"towermap/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "towermap.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testBlobs(t *testing.T) *blobstore.LocalDir {
	t.Helper()
	blobs, err := blobstore.NewLocalDir(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("open image dir: %v", err)
	}
	return blobs
}

func newTestServer(t *testing.T) (*Server, *store.Store, *blobstore.LocalDir) {
	t.Helper()
	st := testStore(t)
	blobs := testBlobs(t)
	return New("127.0.0.1:0", st, blobs, discardLogger()), st, blobs
}

// guestCookie signs in through /guest and returns the session cookie.
func guestCookie(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guest", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected guest 303, got %d (%s)", w.Code, w.Body.String())
	}
	return findCookie(t, w.Result().Cookies())
}

func findCookie(t *testing.T, cookies []*http.Cookie) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile(imageFormField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// faultyMarkerStore wraps a real store and injects failures.
type faultyMarkerStore struct {
	store.MarkerStore
	insertErr error
	listErr   error
	nextID    int64
}

func (f *faultyMarkerStore) NextMarkerID(ctx context.Context) (int64, error) {
	if f.nextID > 0 {
		return f.nextID, nil
	}
	return f.MarkerStore.NextMarkerID(ctx)
}

func (f *faultyMarkerStore) InsertMarker(ctx context.Context, marker *models.Marker) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MarkerStore.InsertMarker(ctx, marker)
}

func (f *faultyMarkerStore) ListMarkers(ctx context.Context) ([]models.Marker, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MarkerStore.ListMarkers(ctx)
}

// faultyBlobStore wraps a real blob store and fails deletes.
type faultyBlobStore struct {
	blobstore.BlobStore
	deleteErr error
}

func (f *faultyBlobStore) Delete(ctx context.Context, ref string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.BlobStore.Delete(ctx, ref)
}

var errInjected = errors.New("injected failure")

func readBlob(t *testing.T, blobs blobstore.BlobStore, ref string) []byte {
	t.Helper()
	rc, err := blobs.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("open blob %s: %v", ref, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read blob %s: %v", ref, err)
	}
	return data
}
