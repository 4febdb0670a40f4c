package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/user/entity"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already exists")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

const selectAccount = `SELECT id, username, first_name, last_name, email, password_hash, role,
	is_verified, verification_token, mfa_code, mfa_expires, reset_token, reset_token_expires,
	created_at, updated_at
  FROM accounts`

// UserRepo provides data access for the accounts table using sqlx. Every
// method is a single statement, so each call is atomic on its own.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u. A username or email already taken yields ErrDuplicate;
// the unique constraints make concurrent registrations safe.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO accounts (id, username, first_name, last_name, email, password_hash, role,
		is_verified, verification_token, created_at, updated_at)
	  VALUES (:id, :username, :first_name, :last_name, :email, :password_hash, :role,
		:is_verified, :verification_token, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByUsername is a case-sensitive exact match.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, selectAccount+` WHERE username=$1`, username)
}

// GetByEmail is a case-sensitive exact match.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, selectAccount+` WHERE email=$1`, email)
}

func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	return r.list(ctx, selectAccount+` ORDER BY created_at`)
}

func (r *UserRepo) ListPendingVerification(ctx context.Context) ([]*entity.User, error) {
	return r.list(ctx, selectAccount+` WHERE verification_token IS NOT NULL`)
}

func (r *UserRepo) ListPendingReset(ctx context.Context) ([]*entity.User, error) {
	return r.list(ctx, selectAccount+` WHERE reset_token IS NOT NULL`)
}

// SaveMFACode overwrites any pending code; the last write wins.
func (r *UserRepo) SaveMFACode(ctx context.Context, username, hash string, expiresAt time.Time) error {
	const q = `UPDATE accounts SET mfa_code=$2, mfa_expires=$3, updated_at=NOW() WHERE username=$1`
	return r.execOne(ctx, q, username, hash, expiresAt)
}

// ConsumeMFACode clears the pending code only if it is still hash.
func (r *UserRepo) ConsumeMFACode(ctx context.Context, username, hash string) (bool, error) {
	const q = `UPDATE accounts SET mfa_code=NULL, mfa_expires=NULL, updated_at=NOW()
	  WHERE username=$1 AND mfa_code=$2`
	return r.execCond(ctx, q, username, hash)
}

// MarkVerified flips the account to verified and clears the secret, only
// if the stored verification hash is still tokenHash.
func (r *UserRepo) MarkVerified(ctx context.Context, username, tokenHash string) (bool, error) {
	const q = `UPDATE accounts SET is_verified=true, verification_token=NULL, updated_at=NOW()
	  WHERE username=$1 AND verification_token=$2`
	return r.execCond(ctx, q, username, tokenHash)
}

func (r *UserRepo) SaveResetToken(ctx context.Context, username, hash string, expiresAt time.Time) error {
	const q = `UPDATE accounts SET reset_token=$2, reset_token_expires=$3, updated_at=NOW() WHERE username=$1`
	return r.execOne(ctx, q, username, hash, expiresAt)
}

// ResetPassword stores the new password hash and clears the reset pair in
// one statement, only if the stored reset hash is still resetHash.
func (r *UserRepo) ResetPassword(ctx context.Context, username, resetHash, passwordHash string) (bool, error) {
	const q = `UPDATE accounts SET password_hash=$3, reset_token=NULL, reset_token_expires=NULL, updated_at=NOW()
	  WHERE username=$1 AND reset_token=$2`
	return r.execCond(ctx, q, username, resetHash, passwordHash)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) list(ctx context.Context, q string) ([]*entity.User, error) {
	var out []*entity.User
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) error {
	ok, err := r.execCond(ctx, q, args...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) execCond(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
