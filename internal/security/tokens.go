package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, unsigned
	// with the configured secret, or missing a required claim.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned by Issue when no signing secret is configured.
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// Claims holds the access token payload. Claim keys match the legacy wire
// format: sub, vai_tro, exp, session_id.
type Claims struct {
	jwt.RegisteredClaims
	// VaiTro is the user's role.
	VaiTro string `json:"vai_tro"`
	// SessionID correlates the token to a server-side session record. Empty for
	// legacy tokens issued before sessions were tracked.
	SessionID string `json:"session_id,omitempty"`
}

// TokenProvider issues and decodes access tokens signed with a shared HMAC secret.
type TokenProvider struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secret and
// HMAC algorithm (HS256, HS384, or HS512). ttl is the lifetime of issued tokens.
func NewTokenProvider(secret, algorithm string, ttl time.Duration) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &TokenProvider{secret: []byte(secret), method: method, ttl: ttl}, nil
}

// Issue signs an access token for the given subject (user id in string form),
// role, and session id. Returns the token string and its expiration time.
// Fails with ErrMissingSecret when the provider has no secret.
func (p *TokenProvider) Issue(subject, role, sessionID string) (token string, expiresAt time.Time, err error) {
	if len(p.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		VaiTro:    role,
		SessionID: sessionID,
	}
	t := jwt.NewWithClaims(p.method, claims)
	token, err = t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Decode verifies the token's signature and expiry and returns its claims.
// sub, vai_tro, and exp are required; a missing session_id is tolerated for
// backward compatibility with older tokens. Any failure returns ErrInvalidToken.
func (p *TokenProvider) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.VaiTro == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
