package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every verification failure uniformly, so callers
// cannot distinguish a bad signature from an expired or malformed token.
var ErrInvalidToken = errors.New("invalid token")

// TokenTTL is how long issued session tokens remain valid.
const TokenTTL = 24 * time.Hour

// Claims is the tenant scope carried by a session token: the authenticated
// user and the organization every downstream data operation is constrained
// to.
type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, time-bound, tenant-scoped session
// tokens. The signing secret is process-wide state loaded once at startup.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. The secret must be non-empty;
// config.Load enforces that before this is ever reached.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// Issue creates a signed token embedding the user and organization IDs with
// an expiry exactly TokenTTL after issuance.
func (s *TokenService) Issue(userID, organizationID uuid.UUID) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:         userID,
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a token, returning the embedded claims
// verbatim. It fails when the signature does not match, the token is
// malformed, or the current time is at or after the expiry. It never
// consults storage: a user or organization deleted after issuance stays
// valid until the token expires.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, s.signingKey, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// signingKey is the jwt.Keyfunc: it pins the algorithm to HMAC before
// releasing the secret, so a token claiming alg=none or RS256 never gets
// signature-checked against the HMAC key.
func (s *TokenService) signingKey(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return s.secret, nil
}
