// Package secret generates one-time secrets and hashes them for storage.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// HashCost is the bcrypt cost used outside tests.
	HashCost = 12
	// TokenBytes is the entropy of emailed verification and reset secrets.
	TokenBytes = 48

	codeMin  = 100000
	codeSpan = 900000
)

// Codec hashes with bcrypt. Input is reduced to a fixed-width SHA-256
// digest first so that secrets and passwords longer than bcrypt's 72 byte
// limit are hashed in full.
type Codec struct {
	cost int
}

func NewCodec(cost int) *Codec {
	if cost == 0 {
		cost = HashCost
	}
	return &Codec{cost: cost}
}

// GenerateSecret returns n random bytes, hex encoded.
func (c *Codec) GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateNumericCode returns a uniformly drawn code in [100000, 999999].
func (c *Codec) GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

func (c *Codec) Hash(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plaintext matches storedHash. A malformed hash
// never matches.
func (c *Codec) Verify(plaintext, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), prehash(plaintext)) == nil
}

func prehash(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
