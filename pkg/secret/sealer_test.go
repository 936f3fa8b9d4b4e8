package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "01234567890123456789012345678901"

func TestNewSealerKeyLength(t *testing.T) {
	_, err := NewSealer("too-short")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewSealer("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	s, err := NewSealer(testKey)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("access-token-123")
	require.NoError(t, err)
	assert.NotEqual(t, "access-token-123", sealed)

	again, err := s.Seal("access-token-123")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token-123", opened)
}

func TestSealEmpty(t *testing.T) {
	s, _ := NewSealer(testKey)

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := s.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestOpenRejectsTampering(t *testing.T) {
	s, _ := NewSealer(testKey)
	other, _ := NewSealer("abcdefghijabcdefghijabcdefghij12")

	sealed, err := s.Seal("refresh-token")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrMalformedSealText)

	_, err = s.Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrMalformedSealText)
}
