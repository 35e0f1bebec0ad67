package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when an access token is malformed, expired,
	// or signed for a different issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned at construction when no signing key is
	// configured. Fatal at startup, never per call.
	ErrMissingSecret = errors.New("signing secret is not configured")
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 64

// AccessClaims holds the JWT claims of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenPair is the result of one issuance: a signed access token and a raw
// opaque refresh token. The refresh token is handed out exactly once; callers
// persist only its SHA-256 hash.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenProvider mints HS256-signed access tokens and opaque refresh tokens.
// Issuer and audience are fixed at construction and validated on every
// verification.
type TokenProvider struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	clock     func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with the given symmetric
// secret. Fails when the secret is empty.
func NewTokenProvider(secret, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &TokenProvider{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the provider clock. Test hook.
func (p *TokenProvider) WithClock(clock func() time.Time) *TokenProvider {
	p.clock = clock
	return p
}

// Mint issues a token pair for the given subject and role. The access token
// carries sub, role, and a unique jti, and expires after the access TTL.
func (p *TokenProvider) Mint(subjectID, role string) (TokenPair, error) {
	jti, err := randomHex(16)
	if err != nil {
		return TokenPair{}, err
	}
	now := p.clock()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
		Role: role,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := newOpaqueToken(refreshTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccess parses and validates an access token (signature, exp, iss,
// aud) and returns its subject and role claims.
func (p *TokenProvider) ValidateAccess(tokenString string) (subjectID, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.clock))
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", "", ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, nil
}

func newOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomHex(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
