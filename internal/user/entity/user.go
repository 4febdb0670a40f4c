package entity

import (
	"slices"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

func (r Role) Valid() bool { return slices.Contains(Roles, r) }

// User is a row of the accounts table. The secret columns only ever hold
// one-way hashes; the MFA and reset columns are written and cleared in pairs.
type User struct {
	ID                    string     `db:"id"`
	Username              string     `db:"username"`
	FirstName             string     `db:"first_name"`
	LastName              string     `db:"last_name"`
	Email                 string     `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	Role                  Role       `db:"role"`
	Verified              bool       `db:"is_verified"`
	VerificationTokenHash *string    `db:"verification_token"`
	MFACodeHash           *string    `db:"mfa_code"`
	MFAExpiresAt          *time.Time `db:"mfa_expires"`
	ResetTokenHash        *string    `db:"reset_token"`
	ResetExpiresAt        *time.Time `db:"reset_token_expires"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// FullName is the display name returned after login.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// PublicUser is the projection safe to return to callers.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Verified  bool   `json:"isVerified"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		Verified:  u.Verified,
	}
}

// Clone returns a deep copy so that stores can hand out records without
// sharing pointers.
func (u *User) Clone() *User {
	c := *u
	c.VerificationTokenHash = cloneString(u.VerificationTokenHash)
	c.MFACodeHash = cloneString(u.MFACodeHash)
	c.ResetTokenHash = cloneString(u.ResetTokenHash)
	c.MFAExpiresAt = cloneTime(u.MFAExpiresAt)
	c.ResetExpiresAt = cloneTime(u.ResetExpiresAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
