// Package validation checks uploaded bytes before any PHI metadata is
// persisted. It is a first filter ahead of storage, not a format parser.
package validation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/hengadev/errsx"
	"github.com/hengadev/phiguard/internal/crypto"
)

// Result is the outcome of validating one file.
type Result struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors,omitempty"`
	FileHash       string   `json:"file_hash"`
	SecureFilename string   `json:"secure_filename"`
}

// AsError folds the rejection reasons into a single error, or nil when the
// file is valid.
func (r *Result) AsError() error {
	errs := make(errsx.Map)
	for i, msg := range r.Errors {
		errs.Set(fmt.Sprintf("content validation %d", i+1), msg)
	}
	return errs.AsError()
}

// Reason joins the rejection reasons for audit entries.
func (r *Result) Reason() string {
	return strings.Join(r.Errors, "; ")
}

// Validator checks declared type against magic bytes and scans for embedded
// script content. It holds no per-call state.
type Validator struct {
	now    func() time.Time
	random io.Reader
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces the clock used for secure filenames.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithRandom replaces the randomness used for secure filenames.
func WithRandom(r io.Reader) Option {
	return func(v *Validator) {
		v.random = r
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks data against declaredMimeType and returns every problem
// found. It never returns an error: rejection is an expected outcome.
func (v *Validator) Validate(data []byte, declaredMimeType, filename string) Result {
	result := Result{
		FileHash:       crypto.HashBytes(data),
		SecureFilename: v.SecureFilename(filename),
	}

	if len(data) == 0 {
		result.Errors = append(result.Errors, "file is empty")
	}

	mimeType := normalizeMimeType(declaredMimeType)
	if m, ok := signatures[mimeType]; ok && len(data) > 0 {
		switch {
		case len(data) < m.minSize:
			result.Errors = append(result.Errors,
				fmt.Sprintf("file is too small to carry a %s signature", m.name))
		case !m.match(data):
			result.Errors = append(result.Errors,
				fmt.Sprintf("file content does not match declared type %s", mimeType))
		}
	}

	for _, description := range scanDangerous(data) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("potentially dangerous content detected: %s", description))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// SecureFilename builds a storage name from a timestamp, random hex and the
// original extension. The rest of the original name is discarded.
func (v *Validator) SecureFilename(original string) string {
	token := make([]byte, 16)
	if _, err := io.ReadFull(v.random, token); err != nil {
		// Fall back to the clock when randomness is unavailable.
		token = []byte(fmt.Sprintf("%016x", v.now().UnixNano()))
	}
	return fmt.Sprintf("%d-%s%s", v.now().UnixMilli(), hex.EncodeToString(token), sanitizeExtension(original))
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

const maxExtensionLength = 10

func sanitizeExtension(filename string) string {
	// Backslashes count as separators too so Windows-style names lose the path.
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" || ext == "." || len(ext) > maxExtensionLength {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
