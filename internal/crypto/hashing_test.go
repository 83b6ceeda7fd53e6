package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_CaseInsensitiveAndDeterministic(t *testing.T) {
	assert.Equal(t, Hash("A@B.com"), Hash("a@b.com"))
	assert.Equal(t, Hash("jane@example.com"), Hash("jane@example.com"))
	assert.NotEqual(t, Hash("jane@example.com"), Hash("john@example.com"))
	assert.Len(t, Hash("x"), 64)
	assert.Equal(t, Hash("a@b.com"), Hash("A@B.COM"))
}

func TestHash_Empty(t *testing.T) {
	assert.Equal(t, "", Hash(""))
}

func TestHashBytes_KnownVector(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBytes([]byte{}))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashBytes([]byte("abc")))
	assert.Equal(t, HashBytes([]byte("abc")), Hash("ABC"))
}

func TestGenerateSecureToken(t *testing.T) {
	box := newTestBox(t)

	token, err := box.GenerateSecureToken(0)
	require.NoError(t, err)
	assert.Len(t, token, DefaultTokenLength*2)

	short, err := box.GenerateSecureToken(8)
	require.NoError(t, err)
	assert.Len(t, short, 16)

	other, err := box.GenerateSecureToken(0)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateSecureToken_ReaderFailure(t *testing.T) {
	box := newTestBox(t, WithRandom(bytes.NewReader([]byte{1, 2})))

	_, err := box.GenerateSecureToken(16)
	assert.Error(t, err)
}
