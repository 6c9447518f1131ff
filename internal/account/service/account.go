package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/extsec"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
	"github.com/shieldsphere/shieldsphere/pkg/cryptox"
	"github.com/shieldsphere/shieldsphere/pkg/idx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

const minPasswordLength = 8

var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooWeak  = errors.New("password does not meet minimum requirements")
	ErrPasswordBreached = errors.New("password found in known data breaches")
)

// AccountService handles registration and account-level lookups.
type AccountService struct {
	Store  store.Store
	Breach *extsec.BreachClient
}

// RegisterResult carries the created account plus the breach lookup result.
// The advisory is surfaced so the caller can relay it to the user.
type RegisterResult struct {
	Email    string              `json:"email"`
	Breach   domain.BreachResult `json:"breach"`
	Advisory string              `json:"advisory"`
}

// Register validates input, hashes the password and creates the account. The
// breach lookup runs on the plaintext before it is discarded; a confirmed
// exposure rejects the registration, but a failed lookup degrades to an
// unchecked advisory and lets the account through.
func (s *AccountService) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return RegisterResult{}, err
	}
	if len(password) < minPasswordLength {
		return RegisterResult{}, ErrPasswordTooWeak
	}

	breach := s.Breach.Check(ctx, password)
	if breach.Checked && breach.Exposed {
		log.Info("registration rejected for breached password", "email", email, "count", breach.Count)
		return RegisterResult{}, ErrPasswordBreached
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, err
	}

	log.Info("account registered", "email", email, "breach_checked", breach.Checked)

	return RegisterResult{
		Email:    email,
		Breach:   breach,
		Advisory: extsec.Advisory(breach),
	}, nil
}

// CheckPassword runs the k-anonymity breach lookup for an arbitrary
// password, without touching any account.
func (s *AccountService) CheckPassword(ctx context.Context, password string) domain.BreachResult {
	return s.Breach.Check(ctx, password)
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
