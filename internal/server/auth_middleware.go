package server

import (
	"fmt"
	"net/http"
	"strings"

	"towermap/internal/auth"
)

// withAuth admits requests carrying a valid API bearer token or a live session cookie.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok, err := s.resolvePrincipal(r)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if !ok {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("sign in required")))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAuthPrincipal(r.Context(), principal)))
	})
}

func (s *Server) resolvePrincipal(r *http.Request) (authPrincipal, bool, error) {
	if token := bearerToken(r); token != "" {
		if s.apiTokenHash != "" && auth.VerifyAPIToken(s.apiTokenHash, token) {
			return authPrincipal{AuthType: authTypeBearer}, true, nil
		}
		return authPrincipal{}, false, nil
	}

	token := sessionTokenFromRequest(r)
	if token == "" || s.authService == nil {
		return authPrincipal{}, false, nil
	}
	user, ok, err := s.authService.SessionUser(r.Context(), token, s.now())
	if err != nil || !ok {
		return authPrincipal{}, false, err
	}
	return sessionPrincipal(user), true, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(proto)
	}
	return "http"
}
