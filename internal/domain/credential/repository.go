package credential

import (
	"context"
	"errors"
)

// LockedFunc runs while the credential row is exclusively held. When it returns
// a token different from the one it received, the repository persists it before
// releasing the lock.
type LockedFunc func(ctx context.Context, current AccessToken) (AccessToken, error)

type Repository interface {
	// ResolveAdminAccountID returns the configured admin account, or the first
	// admin row when accountID is empty. exists is false when no row matches.
	ResolveAdminAccountID(ctx context.Context, accountID string) (resolved string, exists bool, err error)
	WithLockedToken(ctx context.Context, accountID string, fn LockedFunc) (AccessToken, error)
}

// ErrAccountNotFound is returned by WithLockedToken when the row vanished.
var ErrAccountNotFound = errors.New("credential account not found")
