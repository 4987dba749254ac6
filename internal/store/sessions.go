package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// dbTimeLayout is fixed-width so lexical comparison in SQL matches time order.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

// CreateSession records a browser session for one user and token hash.
func (s *Store) CreateSession(ctx context.Context, tokenHash, userName string, expiresAt, createdAt time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	userName = strings.TrimSpace(userName)
	if tokenHash == "" {
		return fmt.Errorf("token hash is required")
	}
	if userName == "" {
		return fmt.Errorf("user name is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_name, created_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, NULL)
	`, tokenHash, userName, dbFormatTime(createdAt), dbFormatTime(expiresAt))
	if err != nil {
		return &StorageError{Op: "create session", Err: err}
	}
	return nil
}

// SessionUser returns the user for an active, non-revoked session token hash.
func (s *Store) SessionUser(ctx context.Context, tokenHash string, now time.Time) (string, bool, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return "", false, nil
	}

	var userName string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_name
		FROM sessions
		WHERE token_hash = ?
		  AND revoked_at IS NULL
		  AND expires_at > ?
		LIMIT 1
	`, tokenHash, dbFormatTime(now)).Scan(&userName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "session lookup", Err: err}
	}
	return userName, true, nil
}

// RevokeSession marks one session revoked by token hash.
func (s *Store) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = ?
		WHERE token_hash = ?
		  AND revoked_at IS NULL
	`, dbFormatTime(revokedAt), tokenHash)
	if err != nil {
		return &StorageError{Op: "revoke session", Err: err}
	}
	return nil
}

// PurgeExpiredSessions deletes expired and revoked sessions.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ?
		   OR revoked_at IS NOT NULL
	`, dbFormatTime(now))
	if err != nil {
		return 0, &StorageError{Op: "purge sessions", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "purge sessions", Err: err}
	}
	return n, nil
}

func dbFormatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}
