package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"towermap/internal/api"
	"towermap/internal/models"
)

const (
	dashboardPath     = "/dashboard"
	invalidTokenBody  = "Invalid token"
	idTokenFormField  = "idToken"
	verifyResultOK    = "ok"
	verifyResultFail  = "invalid"
	verifyResultLimit = "rate_limited"
)

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil || s.authService == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, notImplemented(fmt.Errorf("identity provider is not configured")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultFormMaxBody)
	if err := r.ParseForm(); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyFormError(err))
		return
	}

	now := s.now()
	clientKey := requestClientIP(r)
	if !s.verifyLimiter.Allow(clientKey, now) {
		s.metrics.VerifyAttempt(verifyResultLimit)
		s.writeErrorReq(w, r, http.StatusTooManyRequests, makeAPIError(
			http.StatusTooManyRequests, "resource_exhausted", ErrCodeResourceExhausted,
			fmt.Errorf("too many failed sign-in attempts; retry later"),
		))
		return
	}

	identity, err := s.verifier.Verify(r.Context(), r.PostFormValue(idTokenFormField))
	if err != nil {
		s.verifyLimiter.Fail(clientKey, now)
		s.metrics.VerifyAttempt(verifyResultFail)
		s.writeTextErrorReq(w, r, http.StatusUnauthorized,
			makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeInvalidIDToken, err), invalidTokenBody)
		return
	}
	s.verifyLimiter.Reset(clientKey)
	s.metrics.VerifyAttempt(verifyResultOK)

	if !s.startSession(w, r, identity.DisplayName()) {
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, notImplemented(fmt.Errorf("sessions are not supported by this store")))
		return
	}
	if !s.startSession(w, r, models.GuestUser) {
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user string) bool {
	result, err := s.authService.StartSession(r.Context(), user, s.now())
	if err != nil {
		s.writeStoreError(w, r, err)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.authService.TTL() / time.Second),
		Expires:  result.ExpiresAt,
	})
	s.log().Info("session started", "user", result.User)
	return true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionTokenFromRequest(r); token != "" {
		if err := s.authService.RevokeSessionToken(r.Context(), token, s.now()); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	principal, ok, err := s.resolvePrincipal(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusOK, api.SessionResponse{Authenticated: false})
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{
		Authenticated: true,
		User:          principal.User,
		AuthType:      principal.AuthType,
	})
}

func requestClientIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "<unknown>"
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
