// Package secure derives irreversible, salted representations of secrets
// before they are written to the local store.
package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count used for setup secrets.
	DefaultIterations = 100000

	// DefaultOutputLength is the number of hex characters kept from the derived key.
	DefaultOutputLength = 8

	// MinOutputLength and MaxOutputLength bound the stored hash portion (4–32 bytes).
	MinOutputLength = 8
	MaxOutputLength = 64

	// FormatTag prefixes every value produced by Hash.
	FormatTag = "v1"

	separator = "$"
	saltSize  = 16
	keySize   = 32
)

// Hash derives a PBKDF2-HMAC-SHA256 key from plaintext with a random 16-byte
// salt and returns "v1$<salt-hex>$<hash-hex>". The hash portion is truncated
// to outputLength hex characters, clamped to [MinOutputLength, MaxOutputLength].
func Hash(plaintext string, iterations, outputLength int) (string, error) {
	if iterations < 1 {
		return "", fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	derived := derive(plaintext, salt, iterations)
	n := clampLength(outputLength)
	return strings.Join([]string{FormatTag, hex.EncodeToString(salt), derived[:n]}, separator), nil
}

// LooksHashed reports whether value has the tagged shape produced by Hash.
// It is a format check only.
func LooksHashed(value string) bool {
	parts := strings.Split(value, separator)
	if len(parts) != 3 || parts[0] != FormatTag {
		return false
	}
	return validParts(parts[1], parts[2])
}

// LooksLegacyHashed reports whether value has the untagged "<salt>$<hash>"
// shape written by earlier releases.
func LooksLegacyHashed(value string) bool {
	parts := strings.Split(value, separator)
	if len(parts) != 2 {
		return false
	}
	return validParts(parts[0], parts[1])
}

// UpgradeLegacy returns value in the tagged format if it has the legacy
// shape, and value unchanged otherwise.
func UpgradeLegacy(value string) string {
	if LooksLegacyHashed(value) {
		return FormatTag + separator + value
	}
	return value
}

// Verify re-derives plaintext with the salt embedded in stored and compares
// the result, truncated to the stored hash length, case-insensitively.
// Malformed stored values yield false.
func Verify(plaintext, stored string, iterations int) bool {
	if plaintext == "" || stored == "" || iterations < 1 {
		return false
	}

	var saltHex, hashHex string
	switch {
	case LooksHashed(stored):
		parts := strings.Split(stored, separator)
		saltHex, hashHex = parts[1], parts[2]
	case LooksLegacyHashed(stored):
		parts := strings.Split(stored, separator)
		saltHex, hashHex = parts[0], parts[1]
	default:
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	derived := derive(plaintext, salt, iterations)
	got := derived[:len(hashHex)]
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(hashHex))) == 1
}

func derive(plaintext string, salt []byte, iterations int) string {
	key := pbkdf2.Key([]byte(plaintext), salt, iterations, keySize, sha256.New)
	return hex.EncodeToString(key)
}

func validParts(saltHex, hashHex string) bool {
	return len(saltHex) == 2*saltSize &&
		len(hashHex) >= MinOutputLength && len(hashHex) <= MaxOutputLength &&
		isHex(saltHex) && isHex(hashHex)
}

func clampLength(n int) int {
	if n < MinOutputLength {
		return MinOutputLength
	}
	if n > MaxOutputLength {
		return MaxOutputLength
	}
	return n
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
