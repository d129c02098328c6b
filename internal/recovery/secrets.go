package recovery

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

const (
	codeMin     = 100000
	codeSpan    = 900000 // codes are uniform in [100000, 999999]
	tokenLength = 32     // 256 bits
)

// Secrets produces the one-time code mailed to the user and the reset token
// returned after the code is verified
type Secrets interface {
	NewCode() (string, error)
	NewToken() (string, error)
}

// RandomSecrets draws from a cryptographically secure source
type RandomSecrets struct {
	rand io.Reader
}

func NewRandomSecrets() *RandomSecrets {
	return &RandomSecrets{rand: rand.Reader}
}

// NewCode returns a 6-digit decimal code with no leading zero
func (s *RandomSecrets) NewCode() (string, error) {
	n, err := rand.Int(s.rand, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// NewToken returns 32 random bytes, base64url encoded without padding
func (s *RandomSecrets) NewToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digest is the stored form of a code or token: lowercase hex SHA-256
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// digestMatches compares a plaintext secret to a stored digest in constant time
func digestMatches(secret, storedDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(storedDigest)) == 1
}
