package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/secret"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/repo"
)

// ChallengeManager issues and checks emailed login codes. An account has
// at most one pending code; issuing a new one replaces the old.
type ChallengeManager struct {
	store    Store
	codec    *secret.Codec
	mailer   mail.Sender
	composer *mail.Composer
	now      func() time.Time

	TTL time.Duration
}

// Issue stores the hash of a fresh code on u and mails the plaintext.
func (m *ChallengeManager) Issue(ctx context.Context, u *entity.User) error {
	code, err := m.codec.GenerateNumericCode()
	if err != nil {
		return err
	}
	hash, err := m.codec.Hash(code)
	if err != nil {
		return err
	}
	if err := m.store.SaveMFACode(ctx, u.Username, hash, m.now().Add(m.TTL)); err != nil {
		return storeErr(err)
	}
	msg, err := m.composer.LoginCode(u.Email, code, int(m.TTL/time.Minute))
	if err != nil {
		return err
	}
	if err := m.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}

// Confirm checks code against the pending challenge for username and
// consumes it on success. Only one of several concurrent confirmations of
// the same code succeeds.
func (m *ChallengeManager) Confirm(ctx context.Context, username, code string) (*entity.User, error) {
	u, err := m.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if u.MFACodeHash == nil || u.MFAExpiresAt == nil {
		return u, ErrNoPendingChallenge
	}
	if m.now().After(*u.MFAExpiresAt) {
		return u, ErrChallengeExpired
	}
	if !m.codec.Verify(strings.TrimSpace(code), *u.MFACodeHash) {
		return u, ErrInvalidChallenge
	}
	ok, err := m.store.ConsumeMFACode(ctx, u.Username, *u.MFACodeHash)
	if err != nil {
		return u, storeErr(err)
	}
	if !ok {
		return u, ErrInvalidChallenge
	}
	u.MFACodeHash = nil
	u.MFAExpiresAt = nil
	return u, nil
}
