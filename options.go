package phiguard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hengadev/phiguard/internal/audit"
	"github.com/hengadev/phiguard/internal/health"
	"github.com/hengadev/phiguard/internal/store"
	"github.com/hengadev/phiguard/providers/storage"
)

// Option configures New.
type Option func(o *options) error

type options struct {
	logger    *slog.Logger
	keySource KeySource
	db        *sql.DB
	providers []storage.Provider
	sinks     []audit.Sink
	notifier  Notifier
	now       func() time.Time

	healthChecks []health.Check
	openStore    func(ctx context.Context, cfg Config, o options) (*store.DB, bool, error)
}

// WithLogger replaces the logger built from Config.LogLevel and LogFormat.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", ErrInvalidConfiguration)
		}
		o.logger = logger
		return nil
	}
}

// WithKeySource fetches the encryption key from src. It takes precedence
// over the key fields of Config.
func WithKeySource(src KeySource) Option {
	return func(o *options) error {
		if src == nil {
			return fmt.Errorf("%w: key source is nil", ErrInvalidConfiguration)
		}
		o.keySource = src
		return nil
	}
}

// WithDatabase uses an existing pool instead of opening Config.DatabaseDSN.
// The pool must match Config.DatabaseDriver and is not closed by Core.Close.
func WithDatabase(db *sql.DB) Option {
	return func(o *options) error {
		if db == nil {
			return fmt.Errorf("%w: database is nil", ErrInvalidConfiguration)
		}
		o.db = db
		return nil
	}
}

// WithStorageProvider registers an object store backend, replacing the one
// built from Config for the same storage type.
func WithStorageProvider(p storage.Provider) Option {
	return func(o *options) error {
		o.providers = append(o.providers, p)
		return nil
	}
}

// WithAuditSink adds a sink that receives every audit record next to the
// database and the log.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *options) error {
		o.sinks = append(o.sinks, sink)
		return nil
	}
}

// WithNotifier delivers upload notifications. By default they are logged.
func WithNotifier(n Notifier) Option {
	return func(o *options) error {
		o.notifier = n
		return nil
	}
}

// WithClock sets the clock used for consent expiry and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

// WithHealthCheck adds a probe to Core.Health. A failing critical check
// makes the report unhealthy; any other failure makes it degraded.
func WithHealthCheck(check HealthCheck) Option {
	return func(o *options) error {
		o.healthChecks = append(o.healthChecks, check)
		return nil
	}
}
