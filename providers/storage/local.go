package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hengadev/phiguard/internal/phierr"
)

// ErrInvalidSignature is returned by VerifyDownloadURL for links that were
// not issued by this provider, were altered, or have expired.
var ErrInvalidSignature = errors.New("invalid or expired download link")

// LocalConfig configures the filesystem backend.
type LocalConfig struct {
	// Dir is the root directory objects are written under.
	Dir string
	// BaseURL prefixes download links, e.g. "https://app.example.com/files".
	BaseURL string
	// SigningKey authenticates download links. A random key is generated
	// when empty, so links do not survive a restart.
	SigningKey []byte
	// Now is the clock used for link expiry.
	Now func() time.Time
}

// Local stores objects as files.
type Local struct {
	dir        string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// NewLocal creates the root directory if needed.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Dir == "" {
		return nil, phierr.NewInvalidArgumentError("local storage dir", "is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, phierr.NewStorageError("create storage dir", err)
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = make([]byte, 32)
		if _, err := rand.Read(cfg.SigningKey); err != nil {
			return nil, fmt.Errorf("failed to generate link signing key: %w", err)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "/files"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Local{
		dir:        cfg.Dir,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		signingKey: cfg.SigningKey,
		now:        cfg.Now,
	}, nil
}

func (l *Local) Type() Type {
	return TypeLocal
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", phierr.NewInvalidArgumentError("object key", fmt.Sprintf("%q escapes the storage root", key))
	}
	return filepath.Join(l.dir, clean), nil
}

func (l *Local) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	key, err := ObjectKey(in)
	if err != nil {
		return nil, err
	}
	target, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return nil, phierr.NewStorageError("create object dir", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return nil, phierr.NewStorageError("create object", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(in.Data); err != nil {
		tmp.Close()
		return nil, phierr.NewStorageError("write object", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, phierr.NewStorageError("write object", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, phierr.NewStorageError("commit object", err)
	}

	sum := sha256.Sum256(in.Data)
	return &UploadResult{
		Key:         key,
		ETag:        hex.EncodeToString(sum[:]),
		Location:    target,
		StorageType: TypeLocal,
	}, nil
}

// Open returns the bytes of an object.
func (l *Local) Open(key string) ([]byte, error) {
	target, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: object %s", phierr.ErrNotFound, key)
	}
	if err != nil {
		return nil, phierr.NewStorageError("read object", err)
	}
	return data, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return phierr.NewStorageError("delete object", err)
	}
	return nil
}

// GenerateDownloadURL returns "<base>/<key>?expires=..&filename=..&signature=..".
func (l *Local) GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration, filename string) (*DownloadURL, error) {
	if _, err := l.path(key); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, phierr.NewInvalidArgumentError("ttl", "must be positive")
	}
	expiresAt := l.now().Add(ttl).UTC().Truncate(time.Second)
	expires := strconv.FormatInt(expiresAt.Unix(), 10)

	query := url.Values{}
	query.Set("expires", expires)
	if filename != "" {
		query.Set("filename", filename)
	}
	query.Set("signature", l.sign(key, expires, filename))

	return &DownloadURL{
		URL:       l.baseURL + "/" + escapeKey(key) + "?" + query.Encode(),
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyDownloadURL checks a link issued by GenerateDownloadURL and returns
// the object key and the suggested file name.
func (l *Local) VerifyDownloadURL(raw string) (key, filename string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", ErrInvalidSignature
	}
	base, err := url.Parse(l.baseURL)
	if err != nil {
		return "", "", ErrInvalidSignature
	}
	key, ok := strings.CutPrefix(u.Path, strings.TrimSuffix(base.Path, "/")+"/")
	if !ok || key == "" {
		return "", "", ErrInvalidSignature
	}

	query := u.Query()
	expires, filename := query.Get("expires"), query.Get("filename")
	signature, err := hex.DecodeString(query.Get("signature"))
	if err != nil {
		return "", "", ErrInvalidSignature
	}
	expected, _ := hex.DecodeString(l.sign(key, expires, filename))
	if !hmac.Equal(signature, expected) {
		return "", "", ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || !l.now().Before(time.Unix(unix, 0)) {
		return "", "", ErrInvalidSignature
	}
	return key, filename, nil
}

// escapeKey path-escapes each segment so owner ids containing '?', '#' or
// '%' survive url.Parse in VerifyDownloadURL.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func (l *Local) sign(key, expires, filename string) string {
	mac := hmac.New(sha256.New, l.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write([]byte(expires))
	mac.Write([]byte{0})
	mac.Write([]byte(filename))
	return hex.EncodeToString(mac.Sum(nil))
}
