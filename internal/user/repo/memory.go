package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
)

// MemoryRepo keeps accounts in process memory. It offers the same
// single-record atomicity and uniqueness guarantees as UserRepo and backs
// STORE_DRIVER=memory and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]*entity.User // by username
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]*entity.User), now: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.ID == u.ID {
			return ErrDuplicate
		}
	}
	r.users[u.Username] = u.Clone()
	return nil
}

func (r *MemoryRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context) ([]*entity.User, error) {
	return r.filter(func(*entity.User) bool { return true }), nil
}

func (r *MemoryRepo) ListPendingVerification(ctx context.Context) ([]*entity.User, error) {
	return r.filter(func(u *entity.User) bool { return u.VerificationTokenHash != nil }), nil
}

func (r *MemoryRepo) ListPendingReset(ctx context.Context) ([]*entity.User, error) {
	return r.filter(func(u *entity.User) bool { return u.ResetTokenHash != nil }), nil
}

func (r *MemoryRepo) SaveMFACode(ctx context.Context, username, hash string, expiresAt time.Time) error {
	return r.update(username, func(u *entity.User) bool {
		u.MFACodeHash = &hash
		u.MFAExpiresAt = &expiresAt
		return true
	})
}

func (r *MemoryRepo) ConsumeMFACode(ctx context.Context, username, hash string) (bool, error) {
	return r.updateCond(username, func(u *entity.User) bool {
		if u.MFACodeHash == nil || *u.MFACodeHash != hash {
			return false
		}
		u.MFACodeHash = nil
		u.MFAExpiresAt = nil
		return true
	})
}

func (r *MemoryRepo) MarkVerified(ctx context.Context, username, tokenHash string) (bool, error) {
	return r.updateCond(username, func(u *entity.User) bool {
		if u.VerificationTokenHash == nil || *u.VerificationTokenHash != tokenHash {
			return false
		}
		u.Verified = true
		u.VerificationTokenHash = nil
		return true
	})
}

func (r *MemoryRepo) SaveResetToken(ctx context.Context, username, hash string, expiresAt time.Time) error {
	return r.update(username, func(u *entity.User) bool {
		u.ResetTokenHash = &hash
		u.ResetExpiresAt = &expiresAt
		return true
	})
}

func (r *MemoryRepo) ResetPassword(ctx context.Context, username, resetHash, passwordHash string) (bool, error) {
	return r.updateCond(username, func(u *entity.User) bool {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != resetHash {
			return false
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = nil
		u.ResetExpiresAt = nil
		return true
	})
}

func (r *MemoryRepo) filter(keep func(*entity.User) bool) []*entity.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MemoryRepo) update(username string, fn func(*entity.User) bool) error {
	ok, err := r.updateCond(username, fn)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// updateCond applies fn under the write lock; fn reports whether it changed
// the record. A missing username reports false.
func (r *MemoryRepo) updateCond(username string, fn func(*entity.User) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return false, nil
	}
	if !fn(u) {
		return false, nil
	}
	u.UpdatedAt = r.now()
	return true, nil
}
