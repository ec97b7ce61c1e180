// Package security provides token/credential generation and password hashing
// for invite-created accounts.
package security

import (
	"crypto/rand"
	"encoding/base64"
)

const generatedPasswordLen = 24

// passwordAlphabet mixes cases, digits, and symbols so generated passwords
// satisfy common complexity rules.
const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%^&*"

// GeneratePassword returns a random initial password for a user account
// created by an invite. The plaintext is never persisted; it travels only on
// the notification side channel.
func GeneratePassword() (string, error) {
	b := make([]byte, generatedPasswordLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, generatedPasswordLen)
	for i := range b {
		s[i] = passwordAlphabet[int(b[i])%len(passwordAlphabet)]
	}
	return string(s), nil
}

// GenerateToken returns an unguessable URL-safe invitation token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
