package user

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/secret"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/repo"
)

type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Role      entity.Role
}

// validate checks the account fields other than the password. An empty
// role defaults to student.
func (in *RegisterInput) validate() error {
	if in.Role == "" {
		in.Role = entity.RoleStudent
	}
	for _, f := range []string{in.Username, in.FirstName, in.LastName, in.Email} {
		if strings.TrimSpace(f) == "" {
			return ErrInvalidAccount
		}
	}
	if addr, err := netmail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return ErrInvalidAccount
	}
	if !in.Role.Valid() {
		return ErrInvalidAccount
	}
	return nil
}

// Register creates an unverified account and mails its verification link.
// A mail failure leaves the account in place and reports
// ErrNotificationFailed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.PublicUser, error) {
	if err := in.validate(); err != nil {
		s.failRegistration(ctx, in.Username, "Invalid account details")
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		s.failRegistration(ctx, in.Username, "Password does not meet requirements")
		return nil, err
	}

	// Fast path only; the store's unique constraints decide races.
	if _, err := s.store.GetByUsername(ctx, in.Username); err == nil {
		s.failRegistration(ctx, in.Username, "Username already exists")
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, storeErr(err)
	}

	pwHash, err := s.codec.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.codec.GenerateSecret(secret.TokenBytes)
	if err != nil {
		return nil, err
	}
	tokenHash, err := s.codec.Hash(token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &entity.User{
		ID:                    s.newID(),
		Username:              in.Username,
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		Email:                 in.Email,
		PasswordHash:          pwHash,
		Role:                  in.Role,
		VerificationTokenHash: &tokenHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.failRegistration(ctx, in.Username, "Username or email already exists")
			return nil, ErrDuplicateAccount
		}
		s.audit.Log(ctx, audit.Event{Name: audit.FailRegistration, Message: "Store create failed", User: in.Username, Status: "error", Err: err})
		return nil, storeErr(err)
	}

	msg, err := s.composer.Verification(u.Email, u.FirstName, token)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.audit.Log(ctx, audit.Event{Name: audit.FailRegistration, Message: "Verification email not sent", User: u.Username, Status: "error", Err: err})
		return nil, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	s.audit.Log(ctx, audit.Event{Name: audit.SuccessRegistration, Message: "User registered", User: u.Username, Status: "success"})
	pub := u.Public()
	return &pub, nil
}

// VerifyEmail marks the account holding token as verified. Only hashes are
// stored, so every pending account is checked in turn.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		s.audit.Log(ctx, audit.Event{Name: audit.FailVerification, Message: "Missing token", Status: "failed"})
		return ErrInvalidToken
	}
	pending, err := s.store.ListPendingVerification(ctx)
	if err != nil {
		return storeErr(err)
	}
	for _, u := range pending {
		if u.VerificationTokenHash == nil || !s.codec.Verify(token, *u.VerificationTokenHash) {
			continue
		}
		ok, err := s.store.MarkVerified(ctx, u.Username, *u.VerificationTokenHash)
		if err != nil {
			return storeErr(err)
		}
		if !ok {
			break
		}
		s.audit.Log(ctx, audit.Event{Name: audit.SuccessVerification, Message: "Email verified", User: u.Username, Status: "success"})
		return nil
	}
	s.audit.Log(ctx, audit.Event{Name: audit.FailVerification, Message: "Invalid or expired token", Status: "failed"})
	return ErrInvalidToken
}

// RequestPasswordReset mails a reset link when email belongs to an
// account. An unknown email succeeds silently and sends nothing.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.audit.Log(ctx, audit.Event{Name: audit.RequestReset, Message: "Reset requested for unknown email", Status: "ignored"})
			return nil
		}
		return storeErr(err)
	}

	token, err := s.codec.GenerateSecret(secret.TokenBytes)
	if err != nil {
		return err
	}
	hash, err := s.codec.Hash(token)
	if err != nil {
		return err
	}
	if err := s.store.SaveResetToken(ctx, u.Username, hash, s.now().Add(s.ResetTTL)); err != nil {
		return storeErr(err)
	}

	msg, err := s.composer.PasswordReset(u.Email, token, int(s.ResetTTL/time.Minute))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.audit.Log(ctx, audit.Event{Name: audit.RequestReset, Message: "Reset email not sent", User: u.Username, Status: "error", Err: err})
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	s.audit.Log(ctx, audit.Event{Name: audit.RequestReset, Message: "Reset email sent", User: u.Username, Status: "success"})
	return nil
}

// ConfirmPasswordReset sets a new password for the account holding token.
// The token is looked up first, then its expiry, then the password policy.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	u, err := s.findResetAccount(ctx, token)
	if err != nil {
		return err
	}
	if u.ResetExpiresAt == nil || s.now().After(*u.ResetExpiresAt) {
		s.failReset(ctx, u.Username, "Reset token expired")
		return ErrTokenExpired
	}
	if err := checkPassword(password); err != nil {
		s.failReset(ctx, u.Username, "Password does not meet requirements")
		return err
	}

	pwHash, err := s.codec.Hash(password)
	if err != nil {
		return err
	}
	ok, err := s.store.ResetPassword(ctx, u.Username, *u.ResetTokenHash, pwHash)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		s.failReset(ctx, u.Username, "Reset token already used")
		return ErrInvalidToken
	}
	s.audit.Log(ctx, audit.Event{Name: audit.SuccessReset, Message: "Password reset", User: u.Username, Status: "success"})
	return nil
}

func (s *Service) findResetAccount(ctx context.Context, token string) (*entity.User, error) {
	if token != "" {
		pending, err := s.store.ListPendingReset(ctx)
		if err != nil {
			return nil, storeErr(err)
		}
		for _, u := range pending {
			if u.ResetTokenHash != nil && s.codec.Verify(token, *u.ResetTokenHash) {
				return u, nil
			}
		}
	}
	s.failReset(ctx, "", "Invalid reset token")
	return nil, ErrInvalidToken
}

func (s *Service) failRegistration(ctx context.Context, username, msg string) {
	s.audit.Log(ctx, audit.Event{Name: audit.FailRegistration, Message: msg, User: username, Status: "failed"})
}

func (s *Service) failReset(ctx context.Context, username, msg string) {
	s.audit.Log(ctx, audit.Event{Name: audit.FailReset, Message: msg, User: username, Status: "failed"})
}
