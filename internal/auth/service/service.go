// Package service implements the session lifecycle: login, refresh-token
// rotation, and logout.
package service

import (
	"context"
	"errors"
	"time"

	devicedomain "authgate/internal/device/domain"
	"authgate/internal/events"
	"authgate/internal/security"
	"authgate/internal/store"
	"authgate/internal/throttle"
	userdomain "authgate/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status
// codes. Invalid credentials never distinguish a missing account from a
// wrong password.
var (
	ErrRateLimited        = errors.New("too many login attempts")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing refresh token")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrExpiredToken       = errors.New("refresh token expired")
	ErrOrphanedDevice     = errors.New("invalid device")
)

// UserRepo is the minimal user repository needed by the auth service.
// Missing rows are nil, nil; errors mean the store itself failed.
type UserRepo interface {
	GetByName(ctx context.Context, name string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// DeviceRepo is the minimal device repository needed by the auth service.
type DeviceRepo interface {
	GetByOwnerAndName(ctx context.Context, ownerID, name string) (*devicedomain.Device, error)
	GetByRefreshHash(ctx context.Context, hash string) (*devicedomain.Device, error)
	Create(ctx context.Context, d *devicedomain.Device) error
	SetRefreshToken(ctx context.Context, d *devicedomain.Device, hash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, d *devicedomain.Device, oldHash, newHash string, expiresAt time.Time) error
	HardDelete(ctx context.Context, d *devicedomain.Device) error
}

// LoginResult holds the outcome of a successful login or refresh. A zero
// RefreshToken on refresh means rotation was skipped and the caller's cookie
// stays valid.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
}

// Service orchestrates login, refresh, and logout over the token provider,
// throttle, and repositories.
type Service struct {
	users        UserRepo
	devices      DeviceRepo
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	throttle     *throttle.LoginThrottle
	alerts       events.Emitter
	refreshTTL   time.Duration
	rotateWithin time.Duration
	clock        func() time.Time
}

// New returns a Service. refreshTTL is the device refresh-token lifetime;
// rotateWithin is the trailing slice of that lifetime in which a refresh
// call rotates the token (1 day for a 7-day lifetime: rotation happens once
// the token is older than a day).
func New(
	users UserRepo,
	devices DeviceRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	loginThrottle *throttle.LoginThrottle,
	alerts events.Emitter,
	refreshTTL, rotateWithin time.Duration,
) *Service {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if rotateWithin <= 0 || rotateWithin > refreshTTL {
		rotateWithin = 24 * time.Hour
	}
	return &Service{
		users:        users,
		devices:      devices,
		hasher:       hasher,
		tokens:       tokens,
		throttle:     loginThrottle,
		alerts:       alerts,
		refreshTTL:   refreshTTL,
		rotateWithin: rotateWithin,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Login authenticates username/password and binds a fresh refresh token to
// the device identified by fingerprint. Store failures surface as
// store.ErrUnavailable and are not counted as failed attempts.
func (s *Service) Login(ctx context.Context, username, password, fingerprint string) (*LoginResult, error) {
	if s.throttle.Blocked() {
		events.EmitAsync(s.alerts, &events.AuthEvent{
			Kind: events.KindLoginThrottled, Username: username, Fingerprint: fingerprint, At: s.clock(),
		})
		return nil, ErrRateLimited
	}
	user, err := s.users.GetByName(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, s.failLogin(username, fingerprint)
	}
	if err := s.hasher.Verify(user.PasswordHash, []byte(password)); err != nil {
		return nil, s.failLogin(username, fingerprint)
	}

	pair, err := s.tokens.Mint(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	expiresAt := now.Add(s.refreshTTL)
	hash := security.HashRefreshToken(pair.RefreshToken)

	dev, err := s.devices.GetByOwnerAndName(ctx, user.ID, fingerprint)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		dev = &devicedomain.Device{
			Name:                  fingerprint,
			OwnerID:               user.ID,
			RefreshTokenHash:      hash,
			RefreshTokenExpiresAt: &expiresAt,
		}
		if err := s.devices.Create(ctx, dev); err != nil {
			return nil, err
		}
	} else if err := s.devices.SetRefreshToken(ctx, dev, hash, expiresAt); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: expiresAt,
		Rotated:          true,
	}, nil
}

// failLogin records a throttle failure and alerts operators. The returned
// error never reveals whether the handle existed.
func (s *Service) failLogin(username, fingerprint string) error {
	s.throttle.RecordFailure()
	events.EmitAsync(s.alerts, &events.AuthEvent{
		Kind: events.KindLoginFailure, Username: username, Fingerprint: fingerprint, At: s.clock(),
	})
	return ErrInvalidCredentials
}

// Refresh exchanges a valid refresh token for a new access token. A new
// token pair is always minted; the refresh token is persisted (and returned
// for a new cookie) only when the stored token's expiry is closer than
// refreshTTL-rotateWithin, so lifetime extension stays infrequent. A
// concurrent rotation losing the compare-and-swap is benign: the caller
// still gets a usable access token and keeps its cookie.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	hash := security.HashRefreshToken(refreshToken)
	dev, err := s.devices.GetByRefreshHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, ErrInvalidToken
	}
	now := s.clock()
	if dev.RefreshExpired(now) {
		return nil, ErrExpiredToken
	}
	user, err := s.users.GetByID(ctx, dev.OwnerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrOrphanedDevice
	}

	// Minted unconditionally; the refresh half is discarded unless rotation
	// applies below.
	pair, err := s.tokens.Mint(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	res := &LoginResult{AccessToken: pair.AccessToken}

	rotateBefore := now.Add(s.refreshTTL - s.rotateWithin)
	if dev.RefreshTokenExpiresAt.Before(rotateBefore) {
		expiresAt := now.Add(s.refreshTTL)
		newHash := security.HashRefreshToken(pair.RefreshToken)
		err := s.devices.RotateRefreshToken(ctx, dev, hash, newHash, expiresAt)
		switch {
		case err == nil:
			res.RefreshToken = pair.RefreshToken
			res.RefreshExpiresAt = expiresAt
			res.Rotated = true
		case errors.Is(err, store.ErrConflict):
			// Another refresh with the same token rotated first.
		default:
			return nil, err
		}
	}
	return res, nil
}

// Logout invalidates the device bound to the refresh token. Idempotent and
// non-leaking: it succeeds whether or not a matching device existed, and
// store failures are swallowed (the client discards its cookie regardless).
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	dev, err := s.devices.GetByRefreshHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil || dev == nil {
		return nil
	}
	_ = s.devices.HardDelete(ctx, dev)
	return nil
}
