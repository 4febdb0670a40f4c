package user

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverifiedAccount  = errors.New("account not verified")
	ErrDuplicateAccount   = errors.New("unable to register at this time")
	ErrInvalidAccount     = errors.New("invalid account details")

	ErrNoPendingChallenge = errors.New("no pending login code")
	ErrChallengeExpired   = errors.New("login code expired")
	ErrInvalidChallenge   = errors.New("login code incorrect")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrPasswordPolicy = errors.New("password does not meet requirements")

	// ErrStoreUnavailable wraps every persistence failure. Its text is safe
	// to log but never returned to a caller verbatim.
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrNotificationFailed = errors.New("notification not delivered")
)

// PolicyError lists every password rule that was violated.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return ErrPasswordPolicy.Error() + ": " + strings.Join(e.Violations, ", ")
}

func (e *PolicyError) Is(target error) bool { return target == ErrPasswordPolicy }

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
