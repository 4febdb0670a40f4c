package user

import (
	"context"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/repo"
)

type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
	// SkipMFA issues a token right after the password check. It is for
	// internal callers only; the HTTP login endpoint never sets it.
	SkipMFA bool
}

// LoginResult is either a pending MFA challenge (RequiresMFA, Message) or a
// completed login carrying a token.
type LoginResult struct {
	RequiresMFA bool
	Message     string

	Token    string
	Lifetime time.Duration
	Username string
	FullName string
	Role     entity.Role
}

const mfaSentMessage = "A login code has been sent to your email."

// Login checks username, verification status and password, in that order,
// then either starts an MFA challenge or issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	s.audit.Log(ctx, audit.Event{Name: audit.LoginAttempt, Message: "Login attempt", User: in.Username, Status: "pending"})

	u, err := s.store.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.failLogin(ctx, in.Username, "User not found")
			return nil, ErrInvalidCredentials
		}
		s.audit.Log(ctx, audit.Event{Name: audit.FailLogin, Message: "Store lookup failed", User: in.Username, Status: "error", Err: err})
		return nil, storeErr(err)
	}
	if !u.Verified {
		s.failLogin(ctx, u.Username, "User not verified")
		return nil, ErrUnverifiedAccount
	}
	if !s.codec.Verify(in.Password, u.PasswordHash) {
		s.failLogin(ctx, u.Username, "Password incorrect")
		return nil, ErrInvalidCredentials
	}

	if in.SkipMFA {
		return s.completeLogin(ctx, u, in.RememberMe)
	}

	if err := s.challenges.Issue(ctx, u); err != nil {
		s.audit.Log(ctx, audit.Event{Name: audit.FailLogin, Message: "Could not issue login code", User: u.Username, Status: "error", Err: err})
		return nil, err
	}
	s.audit.Log(ctx, audit.Event{Name: audit.RequiredMFA, Message: "Login code sent", User: u.Username, Status: "pending"})
	return &LoginResult{RequiresMFA: true, Message: mfaSentMessage}, nil
}

// ConfirmMFA completes a login started by Login.
func (s *Service) ConfirmMFA(ctx context.Context, username, code string, remember bool) (*LoginResult, error) {
	u, err := s.challenges.Confirm(ctx, username, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			s.failLogin(ctx, username, "User not found")
		case errors.Is(err, ErrNoPendingChallenge):
			s.failLogin(ctx, username, "No login code pending")
		case errors.Is(err, ErrChallengeExpired):
			s.failLogin(ctx, username, "Login code expired")
		case errors.Is(err, ErrInvalidChallenge):
			s.failLogin(ctx, username, "Login code incorrect")
		default:
			s.audit.Log(ctx, audit.Event{Name: audit.FailLogin, Message: "Login code check failed", User: username, Status: "error", Err: err})
		}
		return nil, err
	}
	return s.completeLogin(ctx, u, remember)
}

// Logout records the end of a session. Tokens are not tracked server side,
// so there is nothing to revoke; token may be empty or already invalid.
func (s *Service) Logout(ctx context.Context, token string) {
	var username string
	if c, ok := s.issuer.Verify(token); ok {
		username = c.Username
	}
	s.audit.Log(ctx, audit.Event{Name: audit.Logout, Message: "User logged out", User: username, Status: "success"})
}

func (s *Service) completeLogin(ctx context.Context, u *entity.User, remember bool) (*LoginResult, error) {
	token, lifetime, err := s.issueToken(u, remember)
	if err != nil {
		s.audit.Log(ctx, audit.Event{Name: audit.FailLogin, Message: "Could not issue token", User: u.Username, Status: "error", Err: err})
		return nil, err
	}
	s.audit.Log(ctx, audit.Event{Name: audit.SuccessLogin, Message: "Login successful", User: u.Username, Status: "success"})
	return &LoginResult{
		Token:    token,
		Lifetime: lifetime,
		Username: u.Username,
		FullName: u.FullName(),
		Role:     u.Role,
	}, nil
}

func (s *Service) failLogin(ctx context.Context, username, msg string) {
	s.audit.Log(ctx, audit.Event{Name: audit.FailLogin, Message: msg, User: username, Status: "failed"})
}
