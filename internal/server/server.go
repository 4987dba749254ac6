package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"towermap/internal/auth"
	"towermap/internal/blobstore"
	"towermap/internal/metrics"
	"towermap/internal/store"
)

const (
	allowRemoteEnvKey = "TOWERMAP_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
	sessionSweepEvery = time.Hour
)

// Server wraps HTTP handlers for the marker API.
type Server struct {
	addr           string
	markerStore    store.MarkerStore
	markers        *MarkerService
	authService    *AuthService
	verifier       auth.TokenVerifier
	verifyLimiter  *verifyRateLimiter
	apiTokenHash   string
	metrics        *metrics.Metrics
	logger         *slog.Logger
	version        string
	maxUploadBytes int64
	now            func() time.Time
}

// AuthOptions configures browser sign-in and bearer access.
type AuthOptions struct {
	Verifier     auth.TokenVerifier
	APITokenHash string
	SessionTTL   time.Duration
}

// New creates a new server instance. Sessions are available when markerStore
// also implements store.SessionStore.
func New(addr string, markerStore store.MarkerStore, blobs blobstore.BlobStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	var authService *AuthService
	if sessionStore, ok := any(markerStore).(store.SessionStore); ok {
		authService = NewAuthService(sessionStore, defaultSessionTTL)
	}

	return &Server{
		addr:           addr,
		markerStore:    markerStore,
		markers:        NewMarkerService(markerStore, blobs, logger),
		authService:    authService,
		verifyLimiter:  newVerifyRateLimiter(defaultVerifyMaxFailures, defaultVerifyWindow, defaultVerifyBlockFor),
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ConfigureAuth installs the identity-token verifier, the API token hash and the session TTL.
func (s *Server) ConfigureAuth(opts AuthOptions) {
	s.verifier = opts.Verifier
	s.apiTokenHash = strings.TrimSpace(opts.APITokenHash)
	if s.authService != nil && opts.SessionTTL > 0 {
		s.authService.sessionTTL = opts.SessionTTL
	}
}

// ConfigureMetrics attaches a metrics registry; /metrics serves it.
func (s *Server) ConfigureMetrics(m *metrics.Metrics) {
	s.metrics = m
	s.markers.SetMetrics(m)
}

// ConfigureUploads sets the request body limit for /data.
func (s *Server) ConfigureUploads(maxBytes int64) {
	if maxBytes > 0 {
		s.maxUploadBytes = maxBytes
	}
}

// SetVersion sets the version reported by /v1/info.
func (s *Server) SetVersion(version string) {
	s.version = version
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "auth", s.authSummary())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	go s.sweepSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context) {
	if s.authService == nil {
		return
	}
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.authService.PurgeExpired(ctx, s.now())
			if err != nil {
				s.log().Warn("purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				s.log().Debug("purged expired sessions", "count", n)
			}
		}
	}
}

func (s *Server) authSummary() string {
	parts := make([]string, 0, 2)
	if s.verifier != nil {
		parts = append(parts, "id-token")
	}
	if s.apiTokenHash != "" {
		parts = append(parts, "api-token")
	}
	if len(parts) == 0 {
		return "guest-only"
	}
	return strings.Join(parts, "+")
}

// ListenAddr converts a listen setting (host:port or URL) into a listen address.
// Non-loopback hosts require TOWERMAP_ALLOW_REMOTE=true.
func ListenAddr(listen string) (string, error) {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return "", fmt.Errorf("listen address is required")
	}
	if u, err := url.Parse(listen); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}
	return listen, nil
}

func isAllowedListenHost(host string) bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
