package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewManager("signing-key", "userhub", time.Hour)

	token, err := m.GenerateAccessToken("10001")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "10001", claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m := NewManager("signing-key", "userhub", time.Hour)
	otherKey := NewManager("other-key", "userhub", time.Hour)
	otherIssuer := NewManager("signing-key", "someone-else", time.Hour)

	token, _ := otherKey.GenerateAccessToken("10001")
	_, err := m.Validate(token)
	assert.Error(t, err)

	token, _ = otherIssuer.GenerateAccessToken("10001")
	_, err = m.Validate(token)
	assert.Error(t, err)

	_, err = m.Validate("garbage")
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("signing-key", "userhub", -time.Minute)
	token, err := m.GenerateAccessToken("10001")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestGenerateRequiresUserKey(t *testing.T) {
	_, err := NewManager("k", "i", time.Hour).GenerateAccessToken("")
	assert.Error(t, err)
}
