package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox("test-secret")
	require.NoError(t, err)

	sealed, err := box.Seal("ltuid=1; ltoken=abc")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ltoken")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ltuid=1; ltoken=abc", plain)
}

func TestSealUsesFreshNonce(t *testing.T) {
	box, _ := NewBox("test-secret")
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsForeignKeyAndGarbage(t *testing.T) {
	box, _ := NewBox("test-secret")
	other, _ := NewBox("other-secret")
	sealed, _ := box.Seal("cookie")

	_, err := other.Open(sealed)
	assert.ErrorIs(t, err, ErrSealedValueInvalid)
	_, err = box.Open("not base64!")
	assert.ErrorIs(t, err, ErrSealedValueInvalid)
	_, err = box.Open("")
	assert.ErrorIs(t, err, ErrSealedValueInvalid)
}

func TestNewBoxRequiresSecret(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, s, 22)
}
