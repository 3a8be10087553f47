// Package security provides identifier derivation, secure random generation,
// and credential utilities.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// DeriveBaseID computes the stable session fingerprint for a network address
// and user agent pair. The same client always maps to the same eight hex
// characters, which is what lets a returning client resume its session.
func DeriveBaseID(networkAddress, userAgent string) string {
	sum := sha256.Sum256([]byte(networkAddress + userAgent))
	return hex.EncodeToString(sum[:])[:8]
}

// DeriveSessionID builds the full session identifier from a category prefix
// and the client fingerprint.
func DeriveSessionID(category, networkAddress, userAgent string) string {
	return strings.ToUpper(category) + "-" + DeriveBaseID(networkAddress, userAgent)
}

// BaseID extracts the fingerprint portion of a session identifier.
func BaseID(sessionID string) string {
	if idx := strings.LastIndex(sessionID, "-"); idx >= 0 {
		return sessionID[idx+1:]
	}
	return sessionID
}

// NewChallenge generates the per-session access challenge embedded in
// navigation URLs. Challenges are unique per session and never rotated.
func NewChallenge() string {
	return strings.ToLower(ulid.Make().String())
}

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSecureKey creates a cryptographically secure random key and returns it as a hex string.
// This is ideal for generating JWT secrets.
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length/2) // Each byte becomes two hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
