package application

import (
	"fmt"
	"time"

	"github.com/bnema/sessionkit/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what the CLI shows about a session token. The signature is
// never checked; the backend remains the authority on validity.
type TokenClaims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Raw       map[string]any
}

// Expired reports whether the token carries an expiry that lies before now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// TokenClaims decodes the current session token. Opaque tokens fail with
// domain.ErrOpaqueToken.
func (s *SessionStore) TokenClaims() (TokenClaims, error) {
	token := s.State().Token
	if token == "" {
		return TokenClaims{}, domain.ErrNoSession
	}
	return ParseTokenClaims(token)
}

// Now is the store's clock reading, used when judging expiry.
func (s *SessionStore) Now() time.Time {
	return s.cfg.Clock.Now()
}

func ParseTokenClaims(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrOpaqueToken, err)
	}

	out := TokenClaims{Raw: map[string]any(claims)}
	out.Subject, _ = claims.GetSubject()
	out.Issuer, _ = claims.GetIssuer()
	if issued, err := claims.GetIssuedAt(); err == nil && issued != nil {
		out.IssuedAt = issued.Time
	}
	if expires, err := claims.GetExpirationTime(); err == nil && expires != nil {
		out.ExpiresAt = expires.Time
	}
	return out, nil
}
