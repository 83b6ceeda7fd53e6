package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/reliability"
	"github.com/hengadev/phiguard/internal/schema"
	"github.com/hengadev/phiguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, schema.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestSQLSink_WriteAccess(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	auditor := New(NewSQLSink(db))

	auditor.LogAccess(ctx, AccessLogEntry{
		ActorID:       "firm-1",
		ActorType:     "lawfirm",
		DocumentType:  "medical_records",
		DocumentID:    "doc-1",
		PatientID:     "patient-1",
		Action:        ActionView,
		Success:       false,
		FailureReason: "No active consent on file for this document type",
		IPAddress:     "10.0.0.1",
	})

	var (
		actor, reason string
		success       bool
	)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT actor_id, failure_reason, success FROM access_logs WHERE patient_id = ?`, "patient-1").
		Scan(&actor, &reason, &success))
	assert.Equal(t, "firm-1", actor)
	assert.Equal(t, "No active consent on file for this document type", reason)
	assert.False(t, success)
}

func TestSQLSink_WritePHIAccess(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	auditor := New(NewSQLSink(db))

	auditor.LogPhiAccess(ctx, PHIAccessEntry{
		UserID:       "provider-1",
		UserRole:     "medical_provider",
		PatientID:    "patient-1",
		ResourceType: "medical_billing",
		ResourceID:   "bill-1",
		Action:       ActionView,
		Purpose:      "treatment",
		Success:      true,
	})

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phi_access_logs WHERE success = ?`, true).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLSink_SurvivesCancelledRequest(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(NewSQLSink(db)).LogAccess(ctx, AccessLogEntry{ActorID: "a", ActorType: "lawfirm", Action: ActionView})

	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM access_logs`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLSink_FailureIsSwallowedAndLogged(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())

	var buf bytes.Buffer
	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: monitoring.LevelInfo, Output: &buf})
	retries := 0
	sink := NewSQLSink(db, WithSinkLogger(logger), WithRetry(reliability.RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		OnRetry:      func(int, time.Duration, error) { retries++ },
	}))

	assert.NotPanics(t, func() {
		New(sink).LogAccess(context.Background(), AccessLogEntry{ID: "entry-1", ActorID: "a", ActorType: "lawfirm", Action: ActionView})
	})
	assert.Equal(t, 1, retries)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "access_logs", record["table"])
	assert.Equal(t, "entry-1", record["entry_id"])
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: monitoring.LevelInfo, Output: &buf})

	NewLogSink(logger).WriteAccess(context.Background(), AccessLogEntry{
		ID:           "entry-1",
		ActorID:      "firm-1",
		Action:       ActionView,
		AccessReason: "LAW_FIRM_ACCESS_FULL_ACCESS",
		Success:      true,
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "document access", record["msg"])
	assert.Equal(t, "LAW_FIRM_ACCESS_FULL_ACCESS", record["access_reason"])
	assert.Equal(t, true, record["success"])
}

func TestMetricsSink(t *testing.T) {
	ctx := context.Background()
	counters := monitoring.NewCounters()
	auditor := New(NewMetricsSink(counters))

	auditor.LogAccess(ctx, AccessLogEntry{ActorType: "lawfirm", Action: ActionView, Success: true})
	auditor.LogAccess(ctx, AccessLogEntry{ActorType: "lawfirm", Action: ActionView})
	auditor.LogAccess(ctx, AccessLogEntry{ActorType: "lawfirm", Action: ActionView})
	auditor.LogPhiAccess(ctx, PHIAccessEntry{UserRole: "medical_provider", Action: ActionDownload, Success: true})

	assert.Equal(t, int64(1), counters.Get(MetricAccess, map[string]string{"actor_type": "lawfirm", "action": ActionView, "outcome": "allowed"}))
	assert.Equal(t, int64(2), counters.Get(MetricAccess, map[string]string{"actor_type": "lawfirm", "action": ActionView, "outcome": "denied"}))
	assert.Equal(t, int64(1), counters.Get(MetricPHIAccess, map[string]string{"user_role": "medical_provider", "action": ActionDownload, "outcome": "allowed"}))
}
