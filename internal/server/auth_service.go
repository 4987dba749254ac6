package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"towermap/internal/store"
)

const (
	sessionCookieName = "towermap_session"
	authTypeBearer    = "bearer"
	authTypeSession   = "session"
	authTypeGuest     = "guest"
)

var defaultSessionTTL = 24 * time.Hour

// AuthService manages browser sessions backed by the store.
type AuthService struct {
	store      store.SessionStore
	sessionTTL time.Duration
}

type sessionResult struct {
	User      string
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(sessionStore store.SessionStore, ttl time.Duration) *AuthService {
	if sessionStore == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &AuthService{store: sessionStore, sessionTTL: ttl}
}

// StartSession issues a new session token for user.
func (a *AuthService) StartSession(ctx context.Context, user string, now time.Time) (*sessionResult, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("user is required")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(a.sessionTTL)
	if err := a.store.CreateSession(ctx, hashSessionToken(token), user, expiresAt, now); err != nil {
		return nil, err
	}

	return &sessionResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// SessionUser resolves a cookie token to its user.
func (a *AuthService) SessionUser(ctx context.Context, token string, now time.Time) (string, bool, error) {
	if a == nil || a.store == nil {
		return "", false, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}
	return a.store.SessionUser(ctx, hashSessionToken(token), now)
}

func (a *AuthService) RevokeSessionToken(ctx context.Context, token string, now time.Time) error {
	if a == nil || a.store == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return a.store.RevokeSession(ctx, hashSessionToken(token), now)
}

// PurgeExpired drops expired and revoked sessions.
func (a *AuthService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if a == nil || a.store == nil {
		return 0, nil
	}
	return a.store.PurgeExpiredSessions(ctx, now)
}

func (a *AuthService) TTL() time.Duration {
	if a == nil || a.sessionTTL <= 0 {
		return defaultSessionTTL
	}
	return a.sessionTTL
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
