package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/schema"
	"github.com/hengadev/phiguard/internal/store"
)

// Repository reads and writes the rows of one category table.
type Repository interface {
	Category() Category
	Insert(ctx context.Context, doc *Document) error
	// Get returns the document only when it belongs to patientID. A missing
	// row yields an error wrapping phierr.ErrNotFound.
	Get(ctx context.Context, id, patientID string) (*Document, error)
	ListForPatient(ctx context.Context, patientID string) ([]Document, error)
	Delete(ctx context.Context, id, patientID string) error
}

// Repositories holds one repository per category.
type Repositories struct {
	byCategory [categoryCount]Repository
}

// NewRepositories builds SQL repositories for every category over db.
func NewRepositories(db store.Querier) *Repositories {
	r := &Repositories{}
	for _, c := range Categories() {
		r.byCategory[c-1] = NewSQLRepository(db, c)
	}
	return r
}

// For returns the repository of category c.
func (r *Repositories) For(c Category) Repository {
	if !c.IsValid() {
		panic(fmt.Sprintf("documents: invalid category %d", int(c)))
	}
	return r.byCategory[c-1]
}

// Set replaces the repository of a category.
func (r *Repositories) Set(c Category, repo Repository) {
	r.byCategory[c-1] = repo
}

var leadingColumns = []string{"id", "user_id", "kind", "category_code"}

var trailingColumns = []string{
	"file_name", "mime_type", "file_size", "file_hash", "storage_key", "storage_type",
	"uploaded_by", "uploaded_by_role", "accessible_by_law_firm", "accessible_by_medical_provider",
	"created_at",
}

// SQLRepository is the database/sql implementation of Repository.
type SQLRepository struct {
	db       store.Querier
	category Category
	table    schema.DocumentTable
	columns  string
}

// NewSQLRepository returns the repository for category c.
func NewSQLRepository(db store.Querier, c Category) *SQLRepository {
	table := c.Table()
	columns := append([]string{}, leadingColumns...)
	for _, name := range table.PHIColumns {
		columns = append(columns, name, schema.EncryptedColumn(name))
	}
	columns = append(columns, trailingColumns...)

	return &SQLRepository{
		db:       db,
		category: c,
		table:    table,
		columns:  strings.Join(columns, ", "),
	}
}

func (r *SQLRepository) Category() Category {
	return r.category
}

func (r *SQLRepository) columnCount() int {
	return len(leadingColumns) + 2*len(r.table.PHIColumns) + len(trailingColumns)
}

func (r *SQLRepository) Insert(ctx context.Context, doc *Document) error {
	if doc.PatientID == "" {
		return phierr.NewInvalidArgumentError("patient id", "is required")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Category = r.category

	args := []any{doc.ID, doc.PatientID, nullString(doc.Kind), nullString(doc.CategoryCode)}
	for _, name := range r.table.PHIColumns {
		f := doc.Field(name)
		args = append(args, f.Plaintext, f.Encrypted)
	}
	args = append(args,
		nullString(doc.FileName), nullString(doc.MimeType), doc.FileSize, nullString(doc.FileHash),
		nullString(doc.StorageKey), nullString(doc.StorageType),
		nullString(doc.UploadedBy), nullString(doc.UploadedByRole),
		doc.AccessibleByLawFirm, doc.AccessibleByMedicalProvider, doc.CreatedAt,
	)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", r.columnCount()), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table.Name, r.columns, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return phierr.NewDatabaseError("insert "+r.table.Name, err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id, patientID string) (*Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND user_id = ?", r.columns, r.table.Name)
	doc, err := r.scan(r.db.QueryRowContext(ctx, query, id, patientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", phierr.ErrNotFound, r.table.Name, id)
	}
	if err != nil {
		return nil, phierr.NewDatabaseError("get "+r.table.Name, err)
	}
	return doc, nil
}

func (r *SQLRepository) ListForPatient(ctx context.Context, patientID string) ([]Document, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? ORDER BY created_at DESC, id", r.columns, r.table.Name)
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, phierr.NewDatabaseError("list "+r.table.Name, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := r.scan(rows)
		if err != nil {
			return nil, phierr.NewDatabaseError("scan "+r.table.Name, err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, phierr.NewDatabaseError("list "+r.table.Name, err)
	}
	return docs, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id, patientID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", r.table.Name)
	res, err := r.db.ExecContext(ctx, query, id, patientID)
	if err != nil {
		return phierr.NewDatabaseError("delete "+r.table.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s %s", phierr.ErrNotFound, r.table.Name, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scan(row scanner) (*Document, error) {
	var (
		doc                          Document
		kind, code                   sql.NullString
		fileName, mimeType, fileHash sql.NullString
		storageKey, storageType      sql.NullString
		uploadedBy, uploadedByRole   sql.NullString
	)
	phi := make([]sql.NullString, 2*len(r.table.PHIColumns))

	dest := []any{&doc.ID, &doc.PatientID, &kind, &code}
	for i := range phi {
		dest = append(dest, &phi[i])
	}
	dest = append(dest,
		&fileName, &mimeType, &doc.FileSize, &fileHash, &storageKey, &storageType,
		&uploadedBy, &uploadedByRole, &doc.AccessibleByLawFirm, &doc.AccessibleByMedicalProvider,
		&doc.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	doc.Category = r.category
	doc.Kind, doc.CategoryCode = kind.String, code.String
	doc.FileName, doc.MimeType, doc.FileHash = fileName.String, mimeType.String, fileHash.String
	doc.StorageKey, doc.StorageType = storageKey.String, storageType.String
	doc.UploadedBy, doc.UploadedByRole = uploadedBy.String, uploadedByRole.String

	doc.PHI = make(map[string]Field, len(r.table.PHIColumns))
	for i, name := range r.table.PHIColumns {
		doc.PHI[name] = Field{
			Plaintext: stringPtr(phi[2*i]),
			Encrypted: stringPtr(phi[2*i+1]),
		}
	}
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
