// Package events carries security-relevant auth events to operators,
// either directly through a notifier or via Kafka and the alert worker.
package events

import (
	"context"
	"fmt"
	"time"
)

// Event kinds emitted by the auth service.
const (
	KindLoginFailure   = "login_failure"
	KindLoginThrottled = "login_throttled"
)

// AuthEvent describes one security-relevant occurrence. Username is the
// attempted login handle as supplied by the client; it may not name a real
// account.
type AuthEvent struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Username    string    `json:"username"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	At          time.Time `json:"at"`
}

// Message renders the event as a human-readable operator alert.
func (e *AuthEvent) Message() string {
	switch e.Kind {
	case KindLoginFailure:
		return fmt.Sprintf("⚠️ Failed login attempt for user **%s**", e.Username)
	case KindLoginThrottled:
		return fmt.Sprintf("⏳ Login throttled for user **%s**: too many attempts", e.Username)
	default:
		return fmt.Sprintf("auth event %s for user %s", e.Kind, e.Username)
	}
}

// Emitter delivers auth events. Implementations are best-effort; callers use
// EmitAsync so delivery never blocks or fails a login response.
type Emitter interface {
	Emit(ctx context.Context, event *AuthEvent) error
}
