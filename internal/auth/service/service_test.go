package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	devicedomain "authgate/internal/device/domain"
	devicerepo "authgate/internal/device/repository"
	"authgate/internal/security"
	"authgate/internal/store"
	"authgate/internal/throttle"
	userdomain "authgate/internal/user/domain"
	userrepo "authgate/internal/user/repository"
)

type fixture struct {
	svc     *Service
	users   *userrepo.Repository
	devices *devicerepo.Repository
	tokens  *security.TokenProvider
	now     time.Time
	mu      sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	be := store.NewMemoryBackend()
	engine := store.NewEngine().WithClock(f.clock)

	users, err := userrepo.New(engine, be)
	if err != nil {
		t.Fatalf("user repository: %v", err)
	}
	devices, err := devicerepo.New(engine, be)
	if err != nil {
		t.Fatalf("device repository: %v", err)
	}

	tokens, err := security.NewTokenProvider("test-secret", "authgate", "authgate-api", 15*time.Minute)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	tokens.WithClock(f.clock)

	th := throttle.New(5*time.Minute, 5).WithClock(f.clock)
	hasher := security.NewHasher(bcrypt.MinCost)

	f.users = users
	f.devices = devices
	f.tokens = tokens
	f.svc = New(users, devices, hasher, tokens, th, nil, 7*24*time.Hour, 24*time.Hour).WithClock(f.clock)
	return f
}

func (f *fixture) createUser(t *testing.T, name, password, role string) *userdomain.User {
	t.Helper()
	hash, err := security.NewHasher(bcrypt.MinCost).Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &userdomain.User{Name: name, PasswordHash: hash, Role: role}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "alice", "secret", "user")

	res, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("login should return both tokens")
	}
	if !res.Rotated {
		t.Error("login always binds a fresh refresh token")
	}

	subject, role, err := f.tokens.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if subject != u.ID || role != "user" {
		t.Errorf("claims = (%q, %q), want (%q, user)", subject, role, u.ID)
	}

	// The device row holds only the hash of the refresh token.
	dev, err := f.devices.GetByOwnerAndName(context.Background(), u.ID, "laptop")
	if err != nil || dev == nil {
		t.Fatalf("device lookup: %v, %v", dev, err)
	}
	if dev.RefreshTokenHash != security.HashRefreshToken(res.RefreshToken) {
		t.Error("stored hash should match the issued refresh token")
	}
	if dev.RefreshTokenHash == res.RefreshToken {
		t.Error("raw refresh token must never be persisted")
	}
	wantExpiry := f.clock().Add(7 * 24 * time.Hour)
	if dev.RefreshTokenExpiresAt == nil || !dev.RefreshTokenExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiry = %v, want %v", dev.RefreshTokenExpiresAt, wantExpiry)
	}
}

func TestLogin_DeviceReuse(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "alice", "secret", "user")

	first, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	dev1, _ := f.devices.GetByOwnerAndName(context.Background(), u.ID, "laptop")

	second, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	dev2, _ := f.devices.GetByOwnerAndName(context.Background(), u.ID, "laptop")

	if dev1.ID != dev2.ID {
		t.Error("same fingerprint should reuse the device row")
	}
	if first.RefreshToken == second.RefreshToken {
		t.Error("each login issues a fresh refresh token")
	}
	if dev2.RefreshTokenHash != security.HashRefreshToken(second.RefreshToken) {
		t.Error("second login should overwrite the stored hash")
	}

	// A distinct fingerprint gets its own row.
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "phone"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	phone, _ := f.devices.GetByOwnerAndName(context.Background(), u.ID, "phone")
	if phone == nil || phone.ID == dev2.ID {
		t.Error("distinct fingerprint should create a distinct device")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")

	// Unknown account and wrong password are indistinguishable.
	if _, err := f.svc.Login(context.Background(), "nobody", "x", "laptop"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.svc.Login(context.Background(), "alice", "wrong", "laptop"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_Throttled(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")

	for i := 0; i < 6; i++ {
		if _, err := f.svc.Login(context.Background(), "alice", "wrong", "laptop"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d err = %v, want ErrInvalidCredentials", i, err)
		}
	}

	// The 7th attempt is refused before credentials are checked, even with
	// the right password.
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "laptop"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}

	// Once the window passes the account is reachable again.
	f.advance(5*time.Minute + time.Second)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "laptop"); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestRefresh_NoRotationWhileFresh(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")
	login, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.advance(time.Hour)
	res, err := f.svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("refresh always returns a new access token")
	}
	if res.Rotated || res.RefreshToken != "" {
		t.Error("a fresh refresh token must not rotate")
	}

	// The original token still works.
	if _, err := f.svc.Refresh(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
}

func TestRefresh_RotationBoundary(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")
	login, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Exactly at the boundary (token age == rotateWithin) rotation is skipped.
	f.advance(24 * time.Hour)
	res, err := f.svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Rotated {
		t.Fatal("rotation at the exact boundary should be skipped")
	}

	// Past the boundary the token rotates.
	f.advance(time.Second)
	res, err = f.svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !res.Rotated || res.RefreshToken == "" {
		t.Fatal("rotation past the boundary should issue a new refresh token")
	}
	if res.RefreshToken == login.RefreshToken {
		t.Error("rotated token must differ from the old one")
	}
	wantExpiry := f.clock().Add(7 * 24 * time.Hour)
	if !res.RefreshExpiresAt.Equal(wantExpiry) {
		t.Errorf("new expiry = %v, want %v", res.RefreshExpiresAt, wantExpiry)
	}

	// The old token is no longer recognized; the new one is.
	if _, err := f.svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old token err = %v, want ErrInvalidToken", err)
	}
	if _, err := f.svc.Refresh(context.Background(), res.RefreshToken); err != nil {
		t.Fatalf("new token refresh: %v", err)
	}
}

func TestRefresh_TokenErrors(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")
	login, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token err = %v, want ErrMissingToken", err)
	}
	if _, err := f.svc.Refresh(context.Background(), "unknown-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown token err = %v, want ErrInvalidToken", err)
	}

	f.advance(8 * 24 * time.Hour)
	if _, err := f.svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expired token err = %v, want ErrExpiredToken", err)
	}
}

func TestRefresh_OrphanedDevice(t *testing.T) {
	f := newFixture(t)

	expiry := f.clock().Add(7 * 24 * time.Hour)
	hash := security.HashRefreshToken("orphan-token")
	dev := &devicedomain.Device{
		Name:                  "laptop",
		OwnerID:               "no-such-user",
		RefreshTokenHash:      hash,
		RefreshTokenExpiresAt: &expiry,
	}
	if err := f.devices.Create(context.Background(), dev); err != nil {
		t.Fatalf("create device: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), "orphan-token"); !errors.Is(err, ErrOrphanedDevice) {
		t.Fatalf("err = %v, want ErrOrphanedDevice", err)
	}
}

func TestRefresh_ConcurrentRotationIsBenign(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "alice", "secret", "user")
	login, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.advance(25 * time.Hour)

	// Simulate the interleaving: another request rotated after our device
	// read. The losing compare-and-swap is benign and the caller still gets
	// an access token without a cookie change.
	dev, err := f.devices.GetByOwnerAndName(context.Background(), u.ID, "laptop")
	if err != nil || dev == nil {
		t.Fatalf("device lookup: %v, %v", dev, err)
	}
	oldHash := security.HashRefreshToken(login.RefreshToken)
	winner := security.HashRefreshToken("winner-token")
	expiry := f.clock().Add(7 * 24 * time.Hour)
	if err := f.devices.RotateRefreshToken(context.Background(), dev, oldHash, winner, expiry); err != nil {
		t.Fatalf("first rotation: %v", err)
	}

	// Losing the race at the repository level surfaces as ErrConflict.
	stale := *dev
	err = f.devices.RotateRefreshToken(context.Background(), &stale, oldHash, security.HashRefreshToken("loser"), expiry)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second rotation err = %v, want store.ErrConflict", err)
	}
}

func TestRefresh_ConflictSwallowedByService(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "alice", "secret", "user")

	expiry := f.clock().Add(6 * time.Hour) // deep inside the rotation window
	hash := security.HashRefreshToken("contended-token")
	conflicting := &conflictingDevices{Repository: f.devices}
	dev := &devicedomain.Device{
		Name:                  "laptop",
		OwnerID:               u.ID,
		RefreshTokenHash:      hash,
		RefreshTokenExpiresAt: &expiry,
	}
	if err := f.devices.Create(context.Background(), dev); err != nil {
		t.Fatalf("create device: %v", err)
	}

	svc := New(f.users, conflicting, security.NewHasher(bcrypt.MinCost), f.tokens, throttle.New(0, 0), nil, 7*24*time.Hour, 24*time.Hour).WithClock(f.clock)

	res, err := svc.Refresh(context.Background(), "contended-token")
	if err != nil {
		t.Fatalf("Refresh losing the race should still succeed: %v", err)
	}
	if res.AccessToken == "" {
		t.Error("access token should be returned despite the lost rotation")
	}
	if res.Rotated || res.RefreshToken != "" {
		t.Error("a lost rotation must not report a new refresh token")
	}
}

// conflictingDevices wraps the real repository but loses every
// compare-and-swap, as if a concurrent rotation always got there first.
type conflictingDevices struct {
	*devicerepo.Repository
}

func (c *conflictingDevices) RotateRefreshToken(context.Context, *devicedomain.Device, string, string, time.Time) error {
	return store.ErrConflict
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "secret", "user")
	login, err := f.svc.Login(context.Background(), "alice", "secret", "laptop")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The token is dead afterwards.
	if _, err := f.svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after logout err = %v, want ErrInvalidToken", err)
	}

	// Idempotent: a second logout and an empty token both succeed.
	if err := f.svc.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Errorf("repeated Logout: %v", err)
	}
	if err := f.svc.Logout(context.Background(), ""); err != nil {
		t.Errorf("Logout without token: %v", err)
	}
	if err := f.svc.Logout(context.Background(), "never-issued"); err != nil {
		t.Errorf("Logout with unknown token: %v", err)
	}
}
