package user

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/secret"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

const (
	MFATTL   = 5 * time.Minute
	ResetTTL = 10 * time.Minute
)

// Store is the persistence contract the flows depend on. Lookups are
// case-sensitive exact matches and return repo.ErrNotFound when absent.
// Create must enforce username and email uniqueness itself and report
// repo.ErrDuplicate. The Consume/Mark/Reset methods only apply when the
// stored hash still equals the given one and report whether they did.
type Store interface {
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Create(ctx context.Context, u *entity.User) error

	ListPendingVerification(ctx context.Context) ([]*entity.User, error)
	MarkVerified(ctx context.Context, username, tokenHash string) (bool, error)

	SaveMFACode(ctx context.Context, username, hash string, expiresAt time.Time) error
	ConsumeMFACode(ctx context.Context, username, hash string) (bool, error)

	ListPendingReset(ctx context.Context) ([]*entity.User, error)
	SaveResetToken(ctx context.Context, username, hash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, username, resetHash, passwordHash string) (bool, error)
}

// Service orchestrates login, MFA and the account lifecycle. It holds no
// mutable state of its own; everything durable lives in the Store.
type Service struct {
	store      Store
	codec      *secret.Codec
	issuer     *session.Issuer
	mailer     mail.Sender
	composer   *mail.Composer
	audit      *audit.Logger
	logger     *zap.SugaredLogger
	challenges *ChallengeManager

	now   func() time.Time
	newID func() string

	ResetTTL time.Duration
}

type Deps struct {
	Store    Store
	Codec    *secret.Codec
	Issuer   *session.Issuer
	Mailer   mail.Sender
	Composer *mail.Composer
	Audit    *audit.Logger
	Logger   *zap.SugaredLogger
}

type Option func(*Service)

// WithClock replaces time.Now for every expiry computed or checked.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the snowflake account id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(d Deps, opts ...Option) *Service {
	if d.Codec == nil {
		d.Codec = secret.NewCodec(secret.HashCost)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	s := &Service{
		store:    d.Store,
		codec:    d.Codec,
		issuer:   d.Issuer,
		mailer:   d.Mailer,
		composer: d.Composer,
		audit:    d.Audit,
		logger:   d.Logger,
		now:      time.Now,
		newID:    utilities.NewSnowflakeID,
		ResetTTL: ResetTTL,
	}
	for _, o := range opts {
		o(s)
	}
	s.challenges = &ChallengeManager{
		store:    s.store,
		codec:    s.codec,
		mailer:   s.mailer,
		composer: s.composer,
		now:      s.now,
		TTL:      MFATTL,
	}
	return s
}

// Challenges exposes the MFA challenge manager.
func (s *Service) Challenges() *ChallengeManager { return s.challenges }

// ListUsers returns every account without secrets.
func (s *Service) ListUsers(ctx context.Context) ([]entity.PublicUser, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]entity.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *Service) issueToken(u *entity.User, remember bool) (string, time.Duration, error) {
	lifetime := session.LifetimeFor(remember)
	token, err := s.issuer.Issue(u.Username, string(u.Role), lifetime)
	if err != nil {
		return "", 0, err
	}
	return token, lifetime, nil
}
