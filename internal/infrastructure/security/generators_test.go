package security

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSessionIDIsStable(t *testing.T) {
	a := DeriveSessionID("alpha", "203.0.113.7", "Mozilla/5.0")
	b := DeriveSessionID("alpha", "203.0.113.7", "Mozilla/5.0")
	assert.Equal(t, a, b, "same client must derive the same ID")
}

func TestDeriveSessionIDFormat(t *testing.T) {
	id := DeriveSessionID("alpha", "203.0.113.7", "Mozilla/5.0")
	assert.Regexp(t, regexp.MustCompile(`^ALPHA-[0-9a-f]{8}$`), id)
}

func TestDeriveSessionIDVariesByClient(t *testing.T) {
	a := DeriveSessionID("alpha", "203.0.113.7", "Mozilla/5.0")
	b := DeriveSessionID("alpha", "203.0.113.8", "Mozilla/5.0")
	c := DeriveSessionID("alpha", "203.0.113.7", "curl/8.0")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestBaseIDExtraction(t *testing.T) {
	id := DeriveSessionID("beta", "203.0.113.7", "Mozilla/5.0")
	base := BaseID(id)
	assert.Len(t, base, 8)
	assert.Equal(t, DeriveBaseID("203.0.113.7", "Mozilla/5.0"), base)
}

func TestNewChallengeIsUniqueAndLowercase(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ch := NewChallenge()
		require.NotEmpty(t, ch)
		assert.Equal(t, strings.ToLower(ch), ch)
		assert.False(t, seen[ch], "challenge repeated")
		seen[ch] = true
	}
}

func TestGenerateSecureKeyLength(t *testing.T) {
	key, err := GenerateSecureKey(64)
	require.NoError(t, err)
	assert.Len(t, key, 64)
}

func TestCredentialHashRoundtrip(t *testing.T) {
	hash, err := HashCredential("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, VerifyCredential(hash, "correct horse battery staple"))
	assert.False(t, VerifyCredential(hash, "wrong"))
}

func TestOperatorTokenRoundtrip(t *testing.T) {
	token, err := GenerateOperatorToken("01ARZ3NDEKTSV4RRFFQ69G5FAV", "alice", false, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateOperatorToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", claims.OperatorID)
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, claims.Admin)

	_, err = ValidateOperatorToken(token, "othersecret")
	assert.Error(t, err)
}
