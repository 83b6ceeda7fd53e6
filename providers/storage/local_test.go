package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T, now *time.Time) *Local {
	t.Helper()
	l, err := NewLocal(LocalConfig{
		Dir:        t.TempDir(),
		BaseURL:    "https://files.example.com/download/",
		SigningKey: []byte("test-signing-key"),
		Now:        func() time.Time { return *now },
	})
	require.NoError(t, err)
	return l
}

func TestLocal_UploadOpenDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := newTestLocal(t, &now)

	res, err := l.Upload(ctx, UploadInput{
		Data:     []byte("%PDF-1.7 test"),
		OwnerID:  "patient-1",
		Category: "medical_records",
		FileName: "1700000000000-abc.pdf",
		MimeType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "patient-1/medical_records/1700000000000-abc.pdf", res.Key)
	assert.Equal(t, TypeLocal, res.StorageType)
	assert.Len(t, res.ETag, 64)

	data, err := l.Open(res.Key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 test", string(data))

	require.NoError(t, l.Delete(ctx, res.Key))
	require.NoError(t, l.Delete(ctx, res.Key), "deleting a missing object is not an error")
	_, err = l.Open(res.Key)
	assert.ErrorIs(t, err, phierr.ErrNotFound)
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := newTestLocal(t, &now)

	_, err := l.Upload(ctx, UploadInput{OwnerID: "..", Category: "evidence", FileName: "x"})
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
	_, err = l.Upload(ctx, UploadInput{OwnerID: "p", Category: "evidence", FileName: "../../etc/passwd"})
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)

	assert.ErrorIs(t, l.Delete(ctx, "../outside"), phierr.ErrInvalidArgument)
	_, err = l.Open("/etc/passwd")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}

func TestLocal_DownloadURL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLocal(t, &now)

	link, err := l.GenerateDownloadURL(ctx, "patient-1/evidence/a.jpg", 15*time.Minute, "photo.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "https://files.example.com/download/patient-1/evidence/a.jpg?"))
	assert.Equal(t, now.Add(15*time.Minute), link.ExpiresAt)

	key, filename, err := l.VerifyDownloadURL(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "patient-1/evidence/a.jpg", key)
	assert.Equal(t, "photo.jpg", filename)

	t.Run("tampered key", func(t *testing.T) {
		tampered := strings.Replace(link.URL, "a.jpg", "b.jpg", 1)
		_, _, err := l.VerifyDownloadURL(tampered)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("other signer", func(t *testing.T) {
		other, err := NewLocal(LocalConfig{Dir: t.TempDir(), BaseURL: "https://files.example.com/download", Now: func() time.Time { return now }})
		require.NoError(t, err)
		_, _, err = other.VerifyDownloadURL(link.URL)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		later := now.Add(16 * time.Minute)
		expired := newTestLocal(t, &later)
		_, _, err := expired.VerifyDownloadURL(link.URL)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	_, err = l.GenerateDownloadURL(ctx, "k", 0, "")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}

func TestLocal_DownloadURLEscapesKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	l := newTestLocal(t, &now)

	keys := []string{
		"owner?x=1/evidence/a.jpg",
		"owner#frag/evidence/a.jpg",
		"owner%41/evidence/scan 1.pdf",
	}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			link, err := l.GenerateDownloadURL(ctx, key, time.Minute, "scan.pdf")
			require.NoError(t, err)

			got, filename, err := l.VerifyDownloadURL(link.URL)
			require.NoError(t, err)
			assert.Equal(t, key, got)
			assert.Equal(t, "scan.pdf", filename)
		})
	}
}

func TestNewLocal_RequiresDir(t *testing.T) {
	_, err := NewLocal(LocalConfig{})
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}
