package store

import (
	"context"
	"time"

	"towermap/internal/models"
)

// MarkerStore abstracts marker persistence backends.
type MarkerStore interface {
	NextMarkerID(ctx context.Context) (int64, error)
	InsertMarker(ctx context.Context, marker *models.Marker) error
	ListMarkers(ctx context.Context) ([]models.Marker, error)
	FindImageRef(ctx context.Context, id int64) (string, bool, error)
	DeleteMarker(ctx context.Context, id int64) (bool, error)
	MarkerStats(ctx context.Context) (MarkerStats, error)
}

// SessionStore persists browser sessions keyed by token hash.
//
// The marker core has no notion of who is signed in.
type SessionStore interface {
	CreateSession(ctx context.Context, tokenHash, userName string, expiresAt, createdAt time.Time) error
	SessionUser(ctx context.Context, tokenHash string, now time.Time) (string, bool, error)
	RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

var (
	_ MarkerStore  = (*Store)(nil)
	_ SessionStore = (*Store)(nil)
)
