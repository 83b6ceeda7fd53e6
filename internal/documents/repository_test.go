package documents

import (
	"context"
	"testing"

	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/schema"
	"github.com/hengadev/phiguard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, schema.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return NewRepositories(db)
}

func strPtr(s string) *string { return &s }

func TestRepositories_ForEveryCategory(t *testing.T) {
	repos := newTestRepositories(t)
	for _, c := range Categories() {
		assert.Equal(t, c, repos.For(c).Category())
	}
	assert.Panics(t, func() { repos.For(Category(0)) })
}

func TestSQLRepository_InsertGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepositories(t).For(MedicalRecords)

	doc := &Document{
		PatientID:           "patient-1",
		Kind:                "MRI",
		FileName:            "scan.pdf",
		MimeType:            "application/pdf",
		FileSize:            1024,
		FileHash:            "abc",
		StorageKey:          "patient-1/medical_records/scan.pdf",
		StorageType:         "local",
		UploadedBy:          "patient-1",
		UploadedByRole:      RolePatient,
		AccessibleByLawFirm: true,
	}
	doc.SetEncrypted("title", strPtr("iv:tag:ct"))
	require.NoError(t, repo.Insert(ctx, doc))
	require.NotEmpty(t, doc.ID)

	got, err := repo.Get(ctx, doc.ID, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, MedicalRecords, got.Category)
	assert.Equal(t, "MRI", got.Kind)
	assert.Equal(t, int64(1024), got.FileSize)
	assert.True(t, got.AccessibleByLawFirm)
	assert.False(t, got.AccessibleByMedicalProvider)
	assert.Equal(t, "iv:tag:ct", crypto.Deref(got.Field("title").Encrypted))
	assert.Nil(t, got.Field("title").Plaintext)
	assert.Nil(t, got.Field("diagnosis").Encrypted)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLRepository_GetScopedToPatient(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepositories(t).For(MedicalBilling)

	doc := &Document{PatientID: "patient-1"}
	require.NoError(t, repo.Insert(ctx, doc))

	_, err := repo.Get(ctx, doc.ID, "patient-2")
	assert.ErrorIs(t, err, phierr.ErrNotFound)

	_, err = repo.Get(ctx, "missing", "patient-1")
	assert.ErrorIs(t, err, phierr.ErrNotFound)
}

func TestSQLRepository_InsertRequiresPatient(t *testing.T) {
	repo := newTestRepositories(t).For(Evidence)
	err := repo.Insert(context.Background(), &Document{})
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}

func TestSQLRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepositories(t)
	repo := repos.For(Evidence)

	for _, patient := range []string{"patient-1", "patient-1", "patient-2"} {
		require.NoError(t, repo.Insert(ctx, &Document{PatientID: patient}))
	}
	// Categories are separate tables.
	require.NoError(t, repos.For(MedicalRecords).Insert(ctx, &Document{PatientID: "patient-1"}))

	docs, err := repo.ListForPatient(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, Evidence, d.Category)
	}

	require.NoError(t, repo.Delete(ctx, docs[0].ID, "patient-1"))
	assert.ErrorIs(t, repo.Delete(ctx, docs[0].ID, "patient-1"), phierr.ErrNotFound)

	docs, err = repo.ListForPatient(ctx, "patient-1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocument_Decrypted(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	box, err := crypto.NewBox(key)
	require.NoError(t, err)

	title, err := box.Encrypt("Crash scene")
	require.NoError(t, err)

	doc := &Document{
		Category: Evidence,
		PHI: map[string]Field{
			"title":       {Encrypted: title, Plaintext: strPtr("stale")},
			"description": {Plaintext: strPtr("legacy description")},
		},
	}

	values, err := doc.Decrypted(box)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"title":       "Crash scene",
		"description": "legacy description",
	}, values)

	doc.PHI["location"] = Field{Encrypted: strPtr("00:00:00")}
	_, err = doc.Decrypted(box)
	assert.Error(t, err)
}
