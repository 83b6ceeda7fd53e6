package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func newTestBox(t *testing.T, opts ...BoxOption) *Box {
	t.Helper()
	box, err := NewBox(testKey, opts...)
	require.NoError(t, err)
	return box
}

func flipHex(c byte) byte {
	if c == '0' {
		return '1'
	}
	return '0'
}

func TestNewBox_RejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"too short", testKey[:62]},
		{"too long", testKey + "00"},
		{"not hex", strings.Repeat("zz", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewBox(tt.key)
			assert.Nil(t, box)
			assert.ErrorIs(t, err, phierr.ErrInvalidKey)
		})
	}
}

func TestBox_RoundTrip(t *testing.T) {
	box := newTestBox(t)

	inputs := []string{
		"a",
		"Jane Doe",
		"diagnosis: fractured left radius",
		"unicode ✓ émigré 漢字",
		strings.Repeat("x", 10000),
		"value:with:colons",
	}

	for _, input := range inputs {
		encrypted, err := box.Encrypt(input)
		require.NoError(t, err)
		require.NotNil(t, encrypted)
		parts := strings.Split(*encrypted, ":")
		require.Len(t, parts, 3)
		assert.Len(t, parts[2], 2*len(input))
		if len(input) >= 8 {
			assert.NotContains(t, parts[2], hex.EncodeToString([]byte(input)))
		}

		decrypted, err := box.Decrypt(*encrypted)
		require.NoError(t, err)
		require.NotNil(t, decrypted)
		assert.Equal(t, input, *decrypted)
	}
}

func TestBox_WireFormat(t *testing.T) {
	box := newTestBox(t)

	encrypted, err := box.Encrypt("hello")
	require.NoError(t, err)

	parts := strings.Split(*encrypted, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 32, "iv must be 16 bytes hex encoded")
	assert.Len(t, parts[1], 32, "auth tag must be 16 bytes hex encoded")
	assert.Len(t, parts[2], len("hello")*2)
	assert.True(t, IsEncryptedField(*encrypted))
}

func TestBox_FreshIVPerCall(t *testing.T) {
	box := newTestBox(t)

	first, err := box.Encrypt("same input")
	require.NoError(t, err)
	second, err := box.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, *first, *second)
	assert.NotEqual(t, strings.Split(*first, ":")[0], strings.Split(*second, ":")[0])

	for _, field := range []string{*first, *second} {
		decrypted, err := box.Decrypt(field)
		require.NoError(t, err)
		assert.Equal(t, "same input", *decrypted)
	}
}

func TestBox_EmptyValuesAreAbsent(t *testing.T) {
	box := newTestBox(t)

	encrypted, err := box.Encrypt("")
	assert.NoError(t, err)
	assert.Nil(t, encrypted)

	decrypted, err := box.Decrypt("")
	assert.NoError(t, err)
	assert.Nil(t, decrypted)
}

func TestBox_TamperingFailsClosed(t *testing.T) {
	box := newTestBox(t)

	encrypted, err := box.Encrypt("patient ssn 123-45-6789")
	require.NoError(t, err)
	field := *encrypted

	// Skip the separators; every other position belongs to iv, tag or ciphertext.
	for i := 0; i < len(field); i++ {
		if field[i] == ':' {
			continue
		}
		tampered := []byte(field)
		tampered[i] = flipHex(tampered[i])

		decrypted, err := box.Decrypt(string(tampered))
		assert.Nil(t, decrypted, "position %d", i)
		assert.ErrorIs(t, err, phierr.ErrIntegrityFailure, "position %d", i)
	}
}

func TestBox_WrongKeyIsIntegrityFailure(t *testing.T) {
	box := newTestBox(t)
	otherKey, err := GenerateKey()
	require.NoError(t, err)
	other, err := NewBox(otherKey)
	require.NoError(t, err)

	encrypted, err := box.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(*encrypted)
	assert.ErrorIs(t, err, phierr.ErrIntegrityFailure)
}

func TestBox_IntegrityFailureIsLoggedCritical(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewLogger(monitoring.LoggerConfig{Output: &buf, Format: monitoring.FormatJSON})
	box := newTestBox(t, WithLogger(logger))

	encrypted, err := box.Encrypt("secret")
	require.NoError(t, err)
	tampered := []byte(*encrypted)
	last := len(tampered) - 1
	tampered[last] = flipHex(tampered[last])

	_, err = box.Decrypt(string(tampered))
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"CRITICAL"`)
	assert.Contains(t, buf.String(), "field_integrity_failure")
	assert.NotContains(t, buf.String(), "secret")
}

func TestBox_DecryptFormatErrors(t *testing.T) {
	box := newTestBox(t)
	iv := strings.Repeat("ab", IVSize)
	tag := strings.Repeat("cd", TagSize)

	tests := []struct {
		name  string
		field string
	}{
		{"plaintext", "not encrypted"},
		{"two parts", iv + ":" + tag},
		{"four parts", iv + ":" + tag + ":00:00"},
		{"short iv", "abcd:" + tag + ":00"},
		{"short tag", iv + ":abcd:00"},
		{"non hex ciphertext", iv + ":" + tag + ":zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decrypted, err := box.Decrypt(tt.field)
			assert.Nil(t, decrypted)
			assert.ErrorIs(t, err, phierr.ErrInvalidFormat)
			assert.False(t, errors.Is(err, phierr.ErrIntegrityFailure))
		})
	}
}

func TestBox_EncryptRandomFailure(t *testing.T) {
	box := newTestBox(t, WithRandom(bytes.NewReader(nil)))

	_, err := box.Encrypt("value")
	assert.ErrorIs(t, err, phierr.ErrEncryptionFailed)
}
