package phiguard

// Test utilities for packages that embed a Core.

import (
	"context"
	"testing"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/monitoring"
)

// NewTestCore builds a Core on in-memory SQLite, local storage in a
// temporary directory and a freshly generated key. Logging is discarded
// unless WithLogger is passed. The Core is closed when the test ends.
func NewTestCore(t testing.TB, opts ...Option) *Core {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := Config{
		EncryptionKey:   key,
		DatabaseDriver:  "sqlite",
		DatabaseDSN:     ":memory:",
		StorageType:     "local",
		LocalStorageDir: t.TempDir(),
	}

	core, err := New(context.Background(), cfg, append([]Option{WithLogger(monitoring.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("new test core: %v", err)
	}
	t.Cleanup(func() { core.Close() })
	return core
}
