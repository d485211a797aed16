// Package auth implements the token authority: issuance, verification, and
// revocation of HS256-signed bearer tokens carrying identity and role claims.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bipedhq/armor/pkg/logging"
)

var (
	ErrShortSecret      = errors.New("secret must be at least 32 characters")
	ErrEmptySubject     = errors.New("subject cannot be empty")
	ErrEmptyRole        = errors.New("role cannot be empty")
	ErrEmptyAudience    = errors.New("audience cannot be empty")
	ErrInvalidTTL       = errors.New("ttl must be positive")
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token has expired")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")
	ErrAudienceMismatch = errors.New("token audience mismatch")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// DefaultLeeway is the clock-skew tolerance applied to time-based claims.
const DefaultLeeway = 5 * time.Second

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Role      string
	Audience  string
	Issuer    string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the wire shape of the claim set.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authority issues, verifies, and revokes signed tokens. Safe for concurrent
// use; verification is read-heavy and does not block issuance.
type Authority struct {
	secretKey []byte
	issuer    string
	leeway    time.Duration
	revoked   *RevocationSet
	logger    logging.Logger
	now       func() time.Time
}

// NewAuthority creates a token authority signing with the given secret.
// Returns an error if the secret is shorter than 32 characters.
func NewAuthority(secret, issuer string, logger logging.Logger) (*Authority, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Authority{
		secretKey: []byte(secret),
		issuer:    issuer,
		leeway:    DefaultLeeway,
		revoked:   NewRevocationSet(),
		logger:    logger.With(logging.Component("auth")),
		now:       time.Now,
	}, nil
}

// Issue signs a new token for the subject with a unique JTI.
// A non-positive ttl is rejected; to mint pre-expired tokens in tests, move
// the authority's clock instead.
func (a *Authority) Issue(subject, role, audience string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if role == "" {
		return "", ErrEmptyRole
	}
	if audience == "" {
		return "", ErrEmptyAudience
	}
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	now := a.now()
	jti := uuid.NewString()

	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	a.logger.Debug("token issued",
		logging.Subject(subject),
		logging.JTI(jti),
		logging.Duration("ttl", ttl),
	)

	return signed, nil
}

// Verify decodes and checks a token. Checks short-circuit in a fixed order:
// malformed, signature, expiry, issuer, audience, revocation. The returned
// error kind is one of the Err* sentinels, usable for logging; callers treat
// every failure the same way (reject).
func (a *Authority) Verify(signedToken, expectedAudience, expectedIssuer string) (*Claims, error) {
	if signedToken == "" {
		return nil, ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)

	var claims tokenClaims
	token, err := parser.ParseWithClaims(signedToken, &claims, func(t *jwt.Token) (any, error) {
		return a.secretKey, nil
	})
	if err != nil {
		return nil, a.classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}

	if expectedIssuer != "" && claims.Issuer != expectedIssuer {
		return nil, ErrIssuerMismatch
	}

	if expectedAudience != "" && !containsAudience(claims.Audience, expectedAudience) {
		return nil, ErrAudienceMismatch
	}

	if claims.ID == "" {
		return nil, ErrTokenMalformed
	}
	if a.revoked.Contains(claims.ID) {
		return nil, ErrTokenRevoked
	}

	out := &Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
		Issuer:  claims.Issuer,
		JTI:     claims.ID,
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	if out.Subject == "" || out.Role == "" {
		return nil, ErrTokenMalformed
	}

	return out, nil
}

// Revoke invalidates a token by JTI before its natural expiry. The original
// expiry is recorded so the entry can be pruned once it would have lapsed
// anyway.
func (a *Authority) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	a.revoked.Add(jti, expiresAt, a.now())
	a.logger.Info("token revoked", logging.JTI(jti))
}

// RevokeClaims revokes the token the claims were extracted from.
func (a *Authority) RevokeClaims(c *Claims) {
	if c == nil {
		return
	}
	a.Revoke(c.JTI, c.ExpiresAt)
}

// RevokedCount returns the number of tracked revocations.
func (a *Authority) RevokedCount() int {
	return a.revoked.Len()
}

// PruneRevoked drops revocation entries whose original expiry has passed.
// Suitable for an optional periodic sweep; the hot path prunes lazily.
func (a *Authority) PruneRevoked() int {
	return a.revoked.Prune(a.now())
}

// classifyParseError maps golang-jwt parse failures onto the error taxonomy.
// Anything unrecognized counts as malformed; malformed input must never
// surface as a panic or a raw library error.
func (a *Authority) classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
