// Package auth verifies caller sessions. Accounts are issued by an
// external identity provider; only the token subject is used locally as
// the owner id.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned for any missing, malformed, expired or
// revoked session token.
var ErrInvalidSession = errors.New("invalid session")

// DefaultCookieName is the session cookie read when no bearer token is sent.
const DefaultCookieName = "session"

// Identity is the authenticated caller.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
	// ValidUntil is the last instant the verifier accepts the token:
	// ExpiresAt plus the clock-skew leeway.
	ValidUntil time.Time
	Token      string
}

// Verifier resolves a raw session token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// SessionClaims defines the claims carried by a session token. The subject
// is the account id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 session tokens and consults an optional
// revocation list.
type JWTVerifier struct {
	secret  []byte
	issuer  string
	leeway  time.Duration
	revoker Revoker
}

// NewJWTVerifier creates a verifier for tokens signed with secret. An empty
// issuer disables the issuer check.
func NewJWTVerifier(secret, issuer string, revoker Revoker) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session verifier requires a secret")
	}
	return &JWTVerifier{
		secret:  []byte(secret),
		issuer:  strings.TrimSpace(issuer),
		leeway:  30 * time.Second,
		revoker: revoker,
	}, nil
}

// Verify validates the token and returns the caller identity.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, ErrInvalidSession
	}

	if v.revoker != nil {
		revoked, err := v.revoker.IsRevoked(ctx, token)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidSession
		}
	}

	id := &Identity{
		UserID: subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Token:  token,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
		id.ValidUntil = id.ExpiresAt.Add(v.leeway)
	}
	return id, nil
}

// GenerateToken signs a session token for userID. It is used by tests and
// by operators minting tokens for the identity provider's shared secret.
func GenerateToken(secret, issuer, userID, email, name string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// TokenFromRequest returns the bearer token or, when absent, the session
// cookie value.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
