package store

import (
	"context"
	"errors"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	LoginEvents() LoginEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. This is the recommended way to
	// handle multi-step writes.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByEmail returns an account by its identity key.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new account (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// Exists reports whether an account with this email is registered.
	Exists(ctx context.Context, email string) (bool, error)

	// SetTwoFactorSecretIfAbsent atomically installs a TOTP secret and marks
	// the second factor enabled, but only when no secret is present yet.
	// Returns true when this call installed the secret, false when another
	// writer got there first (conditional write, not check-then-act).
	SetTwoFactorSecretIfAbsent(ctx context.Context, email, secret string) (bool, error)

	// DisableTwoFactor clears the secret and the enabled marker together, so
	// no dangling secret survives a disabled factor.
	DisableTwoFactor(ctx context.Context, email string) error
}

type LoginEvents interface {
	// Append stores an immutable login event. The write is durable before
	// Append returns.
	Append(ctx context.Context, ev domain.LoginEvent) error

	// ListSince returns the events for email with Timestamp >= since,
	// ordered by timestamp descending.
	ListSince(ctx context.Context, email string, since time.Time) ([]domain.LoginEvent, error)

	// ListRecent returns up to limit most-recent events for email, ordered
	// by timestamp descending. A limit <= 0 returns everything.
	ListRecent(ctx context.Context, email string, limit int) ([]domain.LoginEvent, error)
}
