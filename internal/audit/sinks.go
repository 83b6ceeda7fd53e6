package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/reliability"
	"github.com/hengadev/phiguard/internal/store"
)

// writeTimeout bounds a single audit write, including retries.
const writeTimeout = 2 * time.Second

// SQLSink appends entries to the access_logs and phi_access_logs tables.
// Failed writes are retried briefly, then logged and dropped.
type SQLSink struct {
	db     store.Querier
	logger *slog.Logger
	retry  reliability.RetryConfig
}

// SQLSinkOption configures a SQLSink.
type SQLSinkOption func(*SQLSink)

// WithSinkLogger sets the logger that reports dropped entries.
func WithSinkLogger(logger *slog.Logger) SQLSinkOption {
	return func(s *SQLSink) {
		s.logger = logger
	}
}

// WithRetry replaces the retry configuration.
func WithRetry(config reliability.RetryConfig) SQLSinkOption {
	return func(s *SQLSink) {
		s.retry = config
	}
}

// NewSQLSink returns a sink writing through db.
func NewSQLSink(db store.Querier, opts ...SQLSinkOption) *SQLSink {
	s := &SQLSink{db: db, retry: reliability.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = monitoring.OrDiscard(s.logger)
	return s
}

func (s *SQLSink) WriteAccess(ctx context.Context, e AccessLogEntry) {
	s.write(ctx, "access_logs", e.ID,
		`INSERT INTO access_logs (id, actor_id, actor_type, document_type, document_id, patient_id, action,
			access_reason, success, failure_reason, file_hash, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ActorID, e.ActorType, nullString(e.DocumentType), nullString(e.DocumentID), nullString(e.PatientID),
		e.Action, nullString(e.AccessReason), e.Success, nullString(e.FailureReason), nullString(e.FileHash),
		nullString(e.IPAddress), nullString(e.UserAgent), e.Timestamp,
	)
}

func (s *SQLSink) WritePHIAccess(ctx context.Context, e PHIAccessEntry) {
	s.write(ctx, "phi_access_logs", e.ID,
		`INSERT INTO phi_access_logs (id, user_id, user_role, patient_id, resource_type, resource_id, action,
			purpose, success, failure_reason, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.UserRole, e.PatientID, e.ResourceType, nullString(e.ResourceID), e.Action,
		nullString(e.Purpose), e.Success, nullString(e.FailureReason),
		nullString(e.IPAddress), nullString(e.UserAgent), e.Timestamp,
	)
}

func (s *SQLSink) write(ctx context.Context, table, id, query string, args ...any) {
	// The entry outlives a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	err := reliability.Retry(ctx, s.retry, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "audit write failed, entry dropped",
			"table", table,
			"entry_id", id,
			"error", err,
		)
	}
}

// LogSink writes entries to a structured logger. It is useful next to the
// SQL sink so entries survive a database outage in the log stream.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: monitoring.OrDiscard(logger)}
}

func (s *LogSink) WriteAccess(ctx context.Context, e AccessLogEntry) {
	s.logger.InfoContext(ctx, "document access",
		"entry_id", e.ID,
		"actor_id", e.ActorID,
		"actor_type", e.ActorType,
		"document_type", e.DocumentType,
		"document_id", e.DocumentID,
		"patient_id", e.PatientID,
		"action", e.Action,
		"access_reason", e.AccessReason,
		"success", e.Success,
		"failure_reason", e.FailureReason,
		"file_hash", e.FileHash,
	)
}

func (s *LogSink) WritePHIAccess(ctx context.Context, e PHIAccessEntry) {
	s.logger.InfoContext(ctx, "phi access",
		"entry_id", e.ID,
		"user_id", e.UserID,
		"user_role", e.UserRole,
		"patient_id", e.PatientID,
		"resource_type", e.ResourceType,
		"resource_id", e.ResourceID,
		"action", e.Action,
		"purpose", e.Purpose,
		"success", e.Success,
		"failure_reason", e.FailureReason,
	)
}

// MetricsSink counts entries by actor type, action and outcome.
type MetricsSink struct {
	counters *monitoring.Counters
}

// Counter names maintained by MetricsSink.
const (
	MetricAccess    = "phiguard_access_total"
	MetricPHIAccess = "phiguard_phi_access_total"
)

func NewMetricsSink(counters *monitoring.Counters) *MetricsSink {
	return &MetricsSink{counters: counters}
}

func (s *MetricsSink) WriteAccess(_ context.Context, e AccessLogEntry) {
	s.counters.Increment(MetricAccess, map[string]string{
		"actor_type": e.ActorType,
		"action":     e.Action,
		"outcome":    outcome(e.Success),
	})
}

func (s *MetricsSink) WritePHIAccess(_ context.Context, e PHIAccessEntry) {
	s.counters.Increment(MetricPHIAccess, map[string]string{
		"user_role": e.UserRole,
		"action":    e.Action,
		"outcome":   outcome(e.Success),
	})
}

func outcome(success bool) string {
	if success {
		return "allowed"
	}
	return "denied"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
