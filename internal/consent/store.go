package consent

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/store"
)

// Store reads and writes relationship, consent and scope rows. Reads always
// go to the database; nothing is cached, so a revocation is visible to the
// next check.
type Store struct {
	db  *store.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store over db.
func NewStore(db *store.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// HasRelationship reports whether accessor is linked to patientID. A law
// firm only needs a row; a provider's row must also be active.
func (s *Store) HasRelationship(ctx context.Context, accessor Accessor, patientID string) (bool, error) {
	var query string
	args := []any{accessor.ID, patientID}
	switch accessor.Type {
	case LawFirm:
		query = `SELECT COUNT(*) FROM law_firm_clients WHERE law_firm_id = ? AND client_id = ?`
	case MedicalProvider:
		query = `SELECT COUNT(*) FROM medical_provider_patients WHERE medical_provider_id = ? AND patient_id = ? AND status = ?`
		args = append(args, string(RelationshipActive))
	default:
		return false, phierr.NewInvalidArgumentError("accessor type", fmt.Sprintf("%q is not an accessor type", accessor.Type))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, phierr.NewDatabaseError("check relationship", err)
	}
	return n > 0, nil
}

// ActiveConsents returns the usable consents patientID granted to accessor,
// oldest first, with scopes loaded.
func (s *Store) ActiveConsents(ctx context.Context, patientID string, accessor Accessor) ([]Record, error) {
	records, err := s.queryRecords(ctx,
		`WHERE patient_id = ? AND granted_to_type = ? AND granted_to_id = ? AND status = ?`,
		patientID, string(accessor.Type), accessor.ID, string(StatusActive))
	if err != nil {
		return nil, err
	}

	now := s.now()
	usable := records[:0]
	for _, r := range records {
		if r.Usable(now) {
			usable = append(usable, r)
		}
	}
	return usable, nil
}

// FindGrant returns a usable consent from patientID to accessor covering
// category c, or nil when there is none. Grants are additive, so the first
// match is as good as any other.
func (s *Store) FindGrant(ctx context.Context, patientID string, accessor Accessor, c documents.Category) (*Record, error) {
	records, err := s.ActiveConsents(ctx, patientID, accessor)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Allows(c) {
			return &records[i], nil
		}
	}
	return nil, nil
}

// ListConsents returns every consent patientID has signed, in any status.
func (s *Store) ListConsents(ctx context.Context, patientID string) ([]Record, error) {
	return s.queryRecords(ctx, `WHERE patient_id = ?`, patientID)
}

const recordColumns = `id, patient_id, granted_to_type, granted_to_id, consent_type, status, expires_at, signed_at, revoked_at`

func (s *Store) queryRecords(ctx context.Context, where string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM consents `+where+` ORDER BY signed_at, id`, args...)
	if err != nil {
		return nil, phierr.NewDatabaseError("query consents", err)
	}

	var records []Record
	for rows.Next() {
		var (
			r                    Record
			grantedToType        string
			consentType, status  string
			expiresAt, revokedAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.PatientID, &grantedToType, &r.GrantedTo.ID, &consentType, &status,
			&expiresAt, &r.SignedAt, &revokedAt); err != nil {
			rows.Close()
			return nil, phierr.NewDatabaseError("scan consent", err)
		}
		r.GrantedTo.Type = AccessorType(grantedToType)
		r.Type = Type(consentType)
		r.Status = Status(status)
		r.ExpiresAt = timePtr(expiresAt)
		r.RevokedAt = timePtr(revokedAt)
		records = append(records, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, phierr.NewDatabaseError("query consents", err)
	}

	// Scopes are loaded after the cursor is closed so a single-connection
	// pool does not deadlock.
	for i := range records {
		if records[i].Type != Custom {
			continue
		}
		scopes, err := s.scopes(ctx, s.db, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Scopes = scopes
	}
	return records, nil
}

func (s *Store) scopes(ctx context.Context, q store.Querier, consentID string) ([]Scope, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, consent_id, data_type, can_view FROM consent_scopes WHERE consent_id = ? ORDER BY id`, consentID)
	if err != nil {
		return nil, phierr.NewDatabaseError("query consent scopes", err)
	}
	defer rows.Close()

	var scopes []Scope
	for rows.Next() {
		var (
			scope    Scope
			dataType string
		)
		if err := rows.Scan(&scope.ID, &scope.ConsentID, &dataType, &scope.CanView); err != nil {
			return nil, phierr.NewDatabaseError("scan consent scope", err)
		}
		// Unknown data types stay at the zero Category, which nothing allows.
		if c, err := documents.ParseCategory(dataType); err == nil {
			scope.DataType = c
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, phierr.NewDatabaseError("query consent scopes", err)
	}
	return scopes, nil
}

// ScopeInput is one requested scope of a Custom grant.
type ScopeInput struct {
	DataType documents.Category
	CanView  bool
}

// GrantInput describes a consent the patient is signing.
type GrantInput struct {
	PatientID string
	GrantedTo Accessor
	Type      Type
	ExpiresAt *time.Time
	Scopes    []ScopeInput
}

func (in GrantInput) validate(now time.Time) error {
	var problems []string
	if in.PatientID == "" {
		problems = append(problems, "patient id is required")
	}
	if !in.GrantedTo.Type.IsValid() {
		problems = append(problems, fmt.Sprintf("accessor type %q is not valid", in.GrantedTo.Type))
	}
	if in.GrantedTo.ID == "" {
		problems = append(problems, "accessor id is required")
	}
	if !in.Type.IsValid() {
		problems = append(problems, fmt.Sprintf("consent type %q is not valid", in.Type))
	}
	if in.Type == Custom && len(in.Scopes) == 0 {
		problems = append(problems, "a CUSTOM consent needs at least one scope")
	}
	if in.Type != Custom && len(in.Scopes) > 0 {
		problems = append(problems, "scopes only apply to CUSTOM consents")
	}
	for _, scope := range in.Scopes {
		if !scope.DataType.IsValid() {
			problems = append(problems, "scope data type is not a document category")
			break
		}
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		problems = append(problems, "expiry must be in the future")
	}
	if len(problems) > 0 {
		return phierr.NewInvalidArgumentError("consent", strings.Join(problems, "; "))
	}
	return nil
}

// GrantConsent records a signed consent and its scopes in one transaction.
func (s *Store) GrantConsent(ctx context.Context, in GrantInput) (*Record, error) {
	now := s.timestamp()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	record := &Record{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		GrantedTo: in.GrantedTo,
		Type:      in.Type,
		Status:    StatusActive,
		SignedAt:  now,
	}
	if in.ExpiresAt != nil {
		expiresAt := in.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}

	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO consents (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.PatientID, string(record.GrantedTo.Type), record.GrantedTo.ID,
			string(record.Type), string(record.Status), record.ExpiresAt, record.SignedAt, nil,
		); err != nil {
			return phierr.NewDatabaseError("insert consent", err)
		}

		for _, requested := range in.Scopes {
			scope := Scope{ID: uuid.NewString(), ConsentID: record.ID, DataType: requested.DataType, CanView: requested.CanView}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO consent_scopes (id, consent_id, data_type, can_view) VALUES (?, ?, ?, ?)`,
				scope.ID, scope.ConsentID, scope.DataType.String(), scope.CanView,
			); err != nil {
				return phierr.NewDatabaseError("insert consent scope", err)
			}
			record.Scopes = append(record.Scopes, scope)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RevokeConsent marks an active consent revoked. Only the patient who signed
// it may revoke it; anything else reports phierr.ErrNotFound.
func (s *Store) RevokeConsent(ctx context.Context, consentID, patientID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE consents SET status = ?, revoked_at = ? WHERE id = ? AND patient_id = ? AND status = ?`,
		string(StatusRevoked), s.timestamp(), consentID, patientID, string(StatusActive))
	if err != nil {
		return phierr.NewDatabaseError("revoke consent", err)
	}
	return expectRow(res, "active consent "+consentID)
}

// LinkLawFirmClient records that patientID is a client of lawFirmID. Linking
// twice is a no-op.
func (s *Store) LinkLawFirmClient(ctx context.Context, lawFirmID, patientID string) error {
	if lawFirmID == "" || patientID == "" {
		return phierr.NewInvalidArgumentError("relationship", "law firm id and patient id are required")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO law_firm_clients (id, law_firm_id, client_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (law_firm_id, client_id) DO NOTHING`,
		uuid.NewString(), lawFirmID, patientID, s.timestamp()); err != nil {
		return phierr.NewDatabaseError("link law firm client", err)
	}
	return nil
}

// UnlinkLawFirmClient removes the relationship. Consent checks fail from the
// next call on.
func (s *Store) UnlinkLawFirmClient(ctx context.Context, lawFirmID, patientID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM law_firm_clients WHERE law_firm_id = ? AND client_id = ?`, lawFirmID, patientID)
	if err != nil {
		return phierr.NewDatabaseError("unlink law firm client", err)
	}
	return expectRow(res, "law firm client relationship")
}

// LinkProviderPatient records a provider/patient relationship with the given
// status. Rows are not updated in place: an existing link is left as is.
func (s *Store) LinkProviderPatient(ctx context.Context, providerID, patientID string, status RelationshipStatus) error {
	if providerID == "" || patientID == "" {
		return phierr.NewInvalidArgumentError("relationship", "provider id and patient id are required")
	}
	if status != RelationshipActive && status != RelationshipInactive {
		return phierr.NewInvalidArgumentError("relationship status", fmt.Sprintf("%q is not valid", status))
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO medical_provider_patients (id, medical_provider_id, patient_id, status, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (medical_provider_id, patient_id) DO NOTHING`,
		uuid.NewString(), providerID, patientID, string(status), s.timestamp()); err != nil {
		return phierr.NewDatabaseError("link provider patient", err)
	}
	return nil
}

// UnlinkProviderPatient removes the relationship.
func (s *Store) UnlinkProviderPatient(ctx context.Context, providerID, patientID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM medical_provider_patients WHERE medical_provider_id = ? AND patient_id = ?`, providerID, patientID)
	if err != nil {
		return phierr.NewDatabaseError("unlink provider patient", err)
	}
	return expectRow(res, "provider patient relationship")
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return phierr.NewDatabaseError("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", phierr.ErrNotFound, what)
	}
	return nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
