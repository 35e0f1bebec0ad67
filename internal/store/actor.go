package store

import "context"

type identityKey struct{}

// Identity is the authenticated actor attributed to an operation. Subject is
// the stable user identifier; Role is the authorization tag from the access
// token. The HTTP auth middleware attaches it after verifying a token.
type Identity struct {
	Subject string
	Role    string
}

// WithIdentity returns a context carrying the authenticated identity. The
// gateway resolves the owner for ownable writes and read scoping from it,
// per call.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity from ctx and whether one is set.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// resolveActor yields the owner value for ownable conventions. Outside any
// identity scope (offline tooling, unauthenticated paths) it returns the
// empty sentinel with no error. Inside a scope with an empty subject it
// returns ErrOwnerUnresolved: ownable writes must never silently proceed
// without a real owner in a live scope.
func resolveActor(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", nil
	}
	if id.Subject == "" {
		return "", ErrOwnerUnresolved
	}
	return id.Subject, nil
}
