package server

import (
	"context"

	"towermap/internal/models"
)

type authContextKey struct{}

// authPrincipal is the caller resolved by withAuth. Bearer callers carry no user.
type authPrincipal struct {
	AuthType string
	User     string
}

func sessionPrincipal(user string) authPrincipal {
	if user == models.GuestUser {
		return authPrincipal{AuthType: authTypeGuest, User: user}
	}
	return authPrincipal{AuthType: authTypeSession, User: user}
}

func contextWithAuthPrincipal(ctx context.Context, principal authPrincipal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

// principalUser returns the session user stored on ctx, or "".
func principalUser(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	principal, _ := ctx.Value(authContextKey{}).(authPrincipal)
	return principal.User
}
