// Package credential hashes and verifies account passwords.
//
// A digest is the hex SHA-256 of password+salt, where salt is 16 random
// bytes hex-encoded. Hashing is deterministic for a given password and salt,
// so verification is a plain string comparison of digests.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"
)

const saltBytes = 16

var ErrEncoding = errors.New("password is not valid UTF-8 text")

// NewSalt returns a fresh hex-encoded random salt.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash digests password with salt. An empty salt generates a new one, which
// is returned alongside the digest.
func Hash(password, salt string) (digest string, usedSalt string, err error) {
	if !utf8.ValidString(password) {
		return "", "", ErrEncoding
	}
	if salt == "" {
		salt, err = NewSalt()
		if err != nil {
			return "", "", err
		}
	}
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:]), salt, nil
}

// Verify reports whether password hashes to digest under salt.
func Verify(password, salt, digest string) (bool, error) {
	got, _, err := Hash(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1, nil
}
