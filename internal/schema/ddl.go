package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Statements returns the DDL for every table in dependency order.
func Statements(dt DatabaseType) []string {
	ts := dt.GetTimestampColumnType()
	boolean := dt.GetBooleanColumnType()
	integer := dt.GetIntegerColumnType()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS law_firm_clients (
			id TEXT PRIMARY KEY,
			law_firm_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			UNIQUE (law_firm_id, client_id)
		)`,
		`CREATE TABLE IF NOT EXISTS medical_provider_patients (
			id TEXT PRIMARY KEY,
			medical_provider_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at ` + ts + ` NOT NULL,
			UNIQUE (medical_provider_id, patient_id)
		)`,
		`CREATE TABLE IF NOT EXISTS consents (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			granted_to_type TEXT NOT NULL,
			granted_to_id TEXT NOT NULL,
			consent_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			expires_at ` + ts + `,
			signed_at ` + ts + ` NOT NULL,
			revoked_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consents_grantee ON consents (patient_id, granted_to_type, granted_to_id, status)`,
		`CREATE TABLE IF NOT EXISTS consent_scopes (
			id TEXT PRIMARY KEY,
			consent_id TEXT NOT NULL REFERENCES consents (id),
			data_type TEXT NOT NULL,
			can_view ` + boolean + ` NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consent_scopes_consent ON consent_scopes (consent_id)`,
	}

	for _, table := range DocumentTables() {
		statements = append(statements, documentTableDDL(table, ts, boolean, integer),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s (user_id)`, table.Name, table.Name))
	}

	statements = append(statements,
		`CREATE TABLE IF NOT EXISTS access_logs (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			document_type TEXT,
			document_id TEXT,
			patient_id TEXT,
			action TEXT NOT NULL,
			access_reason TEXT,
			success `+boolean+` NOT NULL,
			failure_reason TEXT,
			file_hash TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at `+ts+` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_logs_patient ON access_logs (patient_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS phi_access_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_role TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT,
			action TEXT NOT NULL,
			purpose TEXT,
			success `+boolean+` NOT NULL,
			failure_reason TEXT,
			ip_address TEXT,
			user_agent TEXT,
			created_at `+ts+` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phi_access_logs_patient ON phi_access_logs (patient_id, created_at)`,
	)
	return statements
}

func documentTableDDL(table DocumentTable, ts, boolean, integer string) string {
	var phi strings.Builder
	for _, column := range table.PHIColumns {
		fmt.Fprintf(&phi, "\t\t\t%s TEXT,\n\t\t\t%s TEXT,\n", column, EncryptedColumn(column))
	}

	return `CREATE TABLE IF NOT EXISTS ` + table.Name + ` (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT,
			category_code TEXT,
` + phi.String() + `			file_name TEXT,
			mime_type TEXT,
			file_size ` + integer + ` NOT NULL DEFAULT 0,
			file_hash TEXT,
			storage_key TEXT,
			storage_type TEXT,
			uploaded_by TEXT,
			uploaded_by_role TEXT,
			accessible_by_law_firm ` + boolean + ` NOT NULL DEFAULT FALSE,
			accessible_by_medical_provider ` + boolean + ` NOT NULL DEFAULT FALSE,
			created_at ` + ts + ` NOT NULL
		)`
}

// Execer is the subset of *sql.DB needed to apply the schema.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate creates every table and index that does not exist yet.
func Migrate(ctx context.Context, db Execer, dt DatabaseType) error {
	for _, statement := range Statements(dt) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
