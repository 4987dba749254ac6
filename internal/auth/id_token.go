package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultJWKSURL serves the signing keys for Firebase-issued ID tokens.
	DefaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	// ClockSkew tolerates small clock differences with the identity provider.
	ClockSkew = 10 * time.Second

	issuerPrefix = "https://securetoken.google.com/"
)

var (
	ErrInvalidIDToken  = errors.New("invalid id token")
	ErrIDTokenExpired  = errors.New("id token expired")
	ErrUnknownKey      = errors.New("unknown signing key")
	ErrMissingIdentity = errors.New("id token carries no name or email")
)

// Identity is the verified principal behind an ID token.
type Identity struct {
	Subject string
	Name    string
	Email   string
}

// DisplayName returns the name used as the marker owner and session user.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return strings.TrimSpace(i.Email)
}

// TokenVerifier verifies an identity provider ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

type idTokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IDTokenVerifier checks RS256 ID tokens issued for one project.
type IDTokenVerifier struct {
	projectID string
	keys      *JWKSCache
	now       func() time.Time
}

// NewIDTokenVerifier creates a verifier for tokens whose audience is projectID.
func NewIDTokenVerifier(projectID string, keys *JWKSCache) (*IDTokenVerifier, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("identity provider project id is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("jwks cache is required")
	}
	return &IDTokenVerifier{projectID: projectID, keys: keys, now: time.Now}, nil
}

// Issuer returns the expected iss claim.
func (v *IDTokenVerifier) Issuer() string {
	return issuerPrefix + v.projectID
}

// Verify validates signature, issuer, audience and expiry and returns the identity.
func (v *IDTokenVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Identity{}, ErrInvalidIDToken
	}

	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.Issuer()),
		jwt.WithAudience(v.projectID),
		jwt.WithLeeway(ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrIDTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidIDToken)
	}

	identity := Identity{Subject: claims.Subject, Name: claims.Name, Email: claims.Email}
	if identity.DisplayName() == "" {
		return Identity{}, ErrMissingIdentity
	}
	return identity, nil
}
