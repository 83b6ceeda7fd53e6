package crypto

import (
	"testing"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestReadField_PrefersEncryptedTwin(t *testing.T) {
	box := newTestBox(t)
	encrypted, err := box.Encrypt("current value")
	require.NoError(t, err)

	value, err := box.ReadField(encrypted, strPtr("stale legacy value"))
	require.NoError(t, err)
	assert.Equal(t, "current value", *value)
}

func TestReadField_FallsBackToPlaintext(t *testing.T) {
	box := newTestBox(t)

	tests := []struct {
		name      string
		encrypted *string
	}{
		{"nil encrypted twin", nil},
		{"empty encrypted twin", strPtr("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := box.ReadField(tt.encrypted, strPtr("legacy"))
			require.NoError(t, err)
			assert.Equal(t, "legacy", *value)
		})
	}
}

func TestReadField_BothAbsent(t *testing.T) {
	box := newTestBox(t)

	value, err := box.ReadField(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestReadField_TamperedEncryptedTwinDoesNotFallBack(t *testing.T) {
	box := newTestBox(t)
	encrypted, err := box.Encrypt("current value")
	require.NoError(t, err)
	tampered := []byte(*encrypted)
	tampered[len(tampered)-1] = flipHex(tampered[len(tampered)-1])

	value, err := box.ReadField(strPtr(string(tampered)), strPtr("legacy"))
	assert.Nil(t, value)
	assert.ErrorIs(t, err, phierr.ErrIntegrityFailure)
}
