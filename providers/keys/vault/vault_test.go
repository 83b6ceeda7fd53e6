package vault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

type mockLogical struct {
	mock.Mock
}

func (m *mockLogical) ReadWithContext(ctx context.Context, path string) (*api.Secret, error) {
	args := m.Called(ctx, path)
	secret, _ := args.Get(0).(*api.Secret)
	return secret, args.Error(1)
}

func (m *mockLogical) WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error) {
	args := m.Called(ctx, path, data)
	secret, _ := args.Get(0).(*api.Secret)
	return secret, args.Error(1)
}

func kv(fields map[string]interface{}) *api.Secret {
	return &api.Secret{Data: map[string]interface{}{"data": fields}}
}

func TestKeySource_FetchKey(t *testing.T) {
	const path = "secret/data/phiguard/encryption-key"

	tests := []struct {
		name    string
		secret  *api.Secret
		readErr error
		wantErr error
	}{
		{"valid", kv(map[string]interface{}{"key": testKey + "\n"}), nil, nil},
		{"read failure", nil, errors.New("permission denied"), phierr.ErrKeySourceUnavailable},
		{"missing secret", nil, nil, phierr.ErrKeySourceUnavailable},
		{"not kv v2", &api.Secret{Data: map[string]interface{}{"key": testKey}}, nil, phierr.ErrKeySourceUnavailable},
		{"missing field", kv(map[string]interface{}{"other": testKey}), nil, phierr.ErrKeySourceUnavailable},
		{"malformed key", kv(map[string]interface{}{"key": "abc"}), nil, phierr.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := new(mockLogical)
			l.On("ReadWithContext", mock.Anything, path).Return(tt.secret, tt.readErr).Once()

			key, err := newKeySource(l, path, DefaultField).FetchKey(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, key)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testKey, key)
			}
			l.AssertExpectations(t)
		})
	}
}

func TestKeySource_StoreKey(t *testing.T) {
	const path = "secret/data/phiguard/encryption-key"
	l := new(mockLogical)
	l.On("WriteWithContext", mock.Anything, path, map[string]interface{}{
		"data": map[string]interface{}{"key": testKey},
	}).Return(&api.Secret{}, nil).Once()

	source := newKeySource(l, path, DefaultField)
	require.NoError(t, source.StoreKey(context.Background(), testKey))
	assert.ErrorIs(t, source.StoreKey(context.Background(), strings.Repeat("z", 64)), phierr.ErrInvalidKey)
	l.AssertExpectations(t)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}
