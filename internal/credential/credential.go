// Package credential wraps the one-way hash used for stored passwords.
//
// At import time the default credential is the candidate's mobile number;
// it is hashed immediately and the plaintext is never retained. On updates,
// an already-hashed value being copied forward is detected and stored as-is
// instead of being hashed a second time.
package credential

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the fixed bcrypt work factor.
const DefaultCost = bcrypt.DefaultCost

// Hash derives a stored credential from a plaintext one.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("empty credential")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plaintext matches the stored hash.
func Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// IsHashed reports whether s is already a stored bcrypt representation.
// Used to distinguish "copy the stored value forward" from "hash this new
// plaintext" on credential updates.
func IsHashed(s string) bool {
	if !strings.HasPrefix(s, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Provision returns the value to store for a credential field: hashed
// representations pass through unchanged, anything else is hashed.
func Provision(value string) (string, error) {
	if IsHashed(value) {
		return value, nil
	}
	return Hash(value)
}
