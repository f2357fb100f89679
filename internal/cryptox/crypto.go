// Package cryptox holds the reference server's hashing primitives: argon2id
// password hashes and keyed digests for one-time codes.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

// ErrMalformedHash is returned for stored hashes that do not parse.
var ErrMalformedHash = errors.New("malformed password hash")

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// DeriveKey runs argon2id with the package parameters.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// HashPassword returns an encoded argon2id hash with a fresh random salt, in
// the form "argon2id$<salt>$<key>".
func HashPassword(password string) string {
	salt := common.GenerateRandByteArray(saltLen)
	key := DeriveKey([]byte(password), salt)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("argon2id$%s$%s", enc.EncodeToString(salt), enc.EncodeToString(key))
}

// VerifyPassword compares password against an encoded hash in constant time.
func VerifyPassword(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false, ErrMalformedHash
	}
	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[1])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := enc.DecodeString(parts[2])
	if err != nil {
		return false, ErrMalformedHash
	}

	got := DeriveKey([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// HashCode returns a keyed digest of a one-time code so codes are never kept
// in clear text. The scope binds the digest to an email and purpose.
func HashCode(secret []byte, scope, code string) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(scope))
	m.Write([]byte{0})
	m.Write([]byte(code))
	return m.Sum(nil)
}

// EqualCode reports whether code matches digest.
func EqualCode(secret []byte, scope, code string, digest []byte) bool {
	return hmac.Equal(HashCode(secret, scope, code), digest)
}
