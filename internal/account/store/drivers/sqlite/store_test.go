package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsersRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		s := newTestStore(t)

		u := domain.User{
			ID:           idx.New().String(),
			Email:        "alice@example.com",
			PasswordHash: "$argon2id$fake",
		}
		require.NoError(t, s.Users().CreateUser(ctx, u))

		got, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, u.Email, got.Email)
		require.Nil(t, got.TwoFactorSecret)
		require.Nil(t, got.TwoFactorEnabled)
		require.False(t, got.TwoFactorActive())
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newTestStore(t)

		u := domain.User{ID: idx.New().String(), Email: "dup@example.com", PasswordHash: "h"}
		require.NoError(t, s.Users().CreateUser(ctx, u))

		u.ID = idx.New().String()
		err := s.Users().CreateUser(ctx, u)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("not found", func(t *testing.T) {
		s := newTestStore(t)

		_, err := s.Users().GetUserByEmail(ctx, "ghost@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		s := newTestStore(t)

		ok, err := s.Users().Exists(ctx, "bob@example.com")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Email: "bob@example.com", PasswordHash: "h",
		}))

		ok, err = s.Users().Exists(ctx, "bob@example.com")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("set secret only when absent", func(t *testing.T) {
		s := newTestStore(t)

		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Email: "mfa@example.com", PasswordHash: "h",
		}))

		installed, err := s.Users().SetTwoFactorSecretIfAbsent(ctx, "mfa@example.com", "SECRET-ONE")
		require.NoError(t, err)
		require.True(t, installed)

		// A second writer loses the conditional update and must re-read.
		installed, err = s.Users().SetTwoFactorSecretIfAbsent(ctx, "mfa@example.com", "SECRET-TWO")
		require.NoError(t, err)
		require.False(t, installed)

		got, err := s.Users().GetUserByEmail(ctx, "mfa@example.com")
		require.NoError(t, err)
		require.NotNil(t, got.TwoFactorSecret)
		require.Equal(t, "SECRET-ONE", *got.TwoFactorSecret)
		require.NotNil(t, got.TwoFactorEnabled)
		require.True(t, got.TwoFactorActive())
	})

	t.Run("disable clears secret and marker", func(t *testing.T) {
		s := newTestStore(t)

		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Email: "off@example.com", PasswordHash: "h",
		}))
		_, err := s.Users().SetTwoFactorSecretIfAbsent(ctx, "off@example.com", "S")
		require.NoError(t, err)

		require.NoError(t, s.Users().DisableTwoFactor(ctx, "off@example.com"))

		got, err := s.Users().GetUserByEmail(ctx, "off@example.com")
		require.NoError(t, err)
		require.Nil(t, got.TwoFactorSecret)
		require.Nil(t, got.TwoFactorEnabled)

		err = s.Users().DisableTwoFactor(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLoginEventsRepo(t *testing.T) {
	ctx := context.Background()

	appendEvent := func(t *testing.T, s *Store, email, ip, country string, success bool, at time.Time) {
		t.Helper()
		require.NoError(t, s.LoginEvents().Append(ctx, domain.LoginEvent{
			ID:        idx.New().String(),
			Email:     email,
			IP:        ip,
			Country:   country,
			Success:   success,
			UserAgent: "test-agent",
			Timestamp: at,
		}))
	}

	t.Run("list since respects window and order", func(t *testing.T) {
		s := newTestStore(t)
		now := time.Now().UTC().Truncate(time.Second)

		appendEvent(t, s, "a@example.com", "1.1.1.1", "AU", true, now.Add(-48*time.Hour))
		appendEvent(t, s, "a@example.com", "1.1.1.2", "AU", false, now.Add(-2*time.Hour))
		appendEvent(t, s, "a@example.com", "1.1.1.3", "NZ", true, now)
		appendEvent(t, s, "b@example.com", "9.9.9.9", "US", true, now)

		events, err := s.LoginEvents().ListSince(ctx, "a@example.com", now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "1.1.1.3", events[0].IP)
		require.Equal(t, "1.1.1.2", events[1].IP)
		require.Equal(t, "test-agent", events[0].UserAgent)
	})

	t.Run("list recent limits", func(t *testing.T) {
		s := newTestStore(t)
		now := time.Now().UTC().Truncate(time.Second)

		for i := 0; i < 7; i++ {
			appendEvent(t, s, "c@example.com", "2.2.2.2", "AU", i%2 == 0, now.Add(time.Duration(-i)*time.Minute))
		}

		events, err := s.LoginEvents().ListRecent(ctx, "c@example.com", 5)
		require.NoError(t, err)
		require.Len(t, events, 5)
		require.True(t, events[0].Timestamp.After(events[4].Timestamp))

		all, err := s.LoginEvents().ListRecent(ctx, "c@example.com", 0)
		require.NoError(t, err)
		require.Len(t, all, 7)
	})

	t.Run("empty history", func(t *testing.T) {
		s := newTestStore(t)

		events, err := s.LoginEvents().ListRecent(ctx, "none@example.com", 10)
		require.NoError(t, err)
		require.Empty(t, events)
	})
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		s := newTestStore(t)

		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, domain.User{
				ID: idx.New().String(), Email: "tx@example.com", PasswordHash: "h",
			})
		})
		require.NoError(t, err)

		ok, err := s.Users().Exists(ctx, "tx@example.com")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("rollback on error", func(t *testing.T) {
		s := newTestStore(t)

		wantErr := store.ErrAlreadyExists
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, domain.User{
				ID: idx.New().String(), Email: "rollback@example.com", PasswordHash: "h",
			}); err != nil {
				return err
			}
			return wantErr
		})
		require.ErrorIs(t, err, wantErr)

		ok, err := s.Users().Exists(ctx, "rollback@example.com")
		require.NoError(t, err)
		require.False(t, ok)
	})
}
