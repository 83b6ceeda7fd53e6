// Package storage stores uploaded document bytes and issues time-limited
// download URLs. Objects live either on the local filesystem or in S3; the
// Router picks the backend recorded on each document row.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hengadev/phiguard/internal/phierr"
)

// Type names a storage backend. It is persisted on document rows.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// ParseType validates s as a storage Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case TypeLocal, TypeS3:
		return t, nil
	default:
		return "", phierr.NewInvalidArgumentError("storage type", fmt.Sprintf("%q is not supported", s))
	}
}

// UploadInput is an object to store. FileName must already be a generated
// name; it becomes the last segment of the object key.
type UploadInput struct {
	Data     []byte
	OwnerID  string
	Category string
	FileName string
	MimeType string
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key         string
	Bucket      string
	ETag        string
	Location    string
	StorageType Type
}

// DownloadURL is a time-limited link to an object.
type DownloadURL struct {
	URL       string
	ExpiresAt time.Time
}

// Provider is one storage backend.
type Provider interface {
	Type() Type
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration, filename string) (*DownloadURL, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<owner>/<category>/<file>" after checking that no
// segment can escape its directory.
func ObjectKey(in UploadInput) (string, error) {
	for name, segment := range map[string]string{"owner id": in.OwnerID, "category": in.Category, "file name": in.FileName} {
		if segment == "" || segment == "." || segment == ".." || strings.ContainsAny(segment, `/\`) {
			return "", phierr.NewInvalidArgumentError(name, fmt.Sprintf("%q is not a valid key segment", segment))
		}
	}
	return path.Join(in.OwnerID, in.Category, in.FileName), nil
}

func contentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	return fmt.Sprintf("attachment; filename=%q", filename)
}
