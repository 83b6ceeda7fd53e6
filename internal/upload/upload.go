// Package upload runs the document upload gate: content validation, object
// storage, PHI encryption, visibility flags, persistence, audit and
// notification, in that order.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hengadev/phiguard/internal/audit"
	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/hengadev/phiguard/internal/validation"
	"github.com/hengadev/phiguard/providers/storage"
)

// Storage is the object store collaborator.
type Storage interface {
	Upload(ctx context.Context, in storage.UploadInput) (*storage.UploadResult, error)
	Delete(ctx context.Context, key string, storageType storage.Type) error
}

// Notification announces a new document.
type Notification struct {
	PatientID      string
	AccessorID     string
	DocumentType   documents.Category
	DocumentID     string
	UploadedBy     string
	UploadedByRole string
}

// Notifier delivers document notifications.
type Notifier interface {
	CreateDocumentNotification(ctx context.Context, n Notification) error
}

// Request is one upload.
type Request struct {
	PatientID string
	Category  documents.Category

	Data     []byte
	FileName string
	MimeType string

	Kind         string
	CategoryCode string
	// PHI maps attribute names of the category table to plaintext values.
	PHI map[string]string

	UploadedBy     string
	UploadedByRole string
	// AccessorID is the law firm or provider the notification is addressed to.
	AccessorID string
	// ShareWithLawFirm marks a patient upload visible to the law firm.
	// Law firm uploads are always visible to the law firm.
	ShareWithLawFirm bool

	IPAddress string
	UserAgent string
}

// Result is the outcome of an upload. A rejected upload is not an error.
type Result struct {
	Accepted bool
	Errors   []string
	FileHash string
	Document *documents.Document
}

// Service runs uploads.
type Service struct {
	validator *validation.Validator
	box       *crypto.Box
	docs      *documents.Repositories
	storage   Storage
	policy    documents.Policy
	auditor   *audit.Auditor
	notifier  Notifier
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithPolicy replaces the auto-approval policy.
func WithPolicy(p documents.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithValidator replaces the content validator.
func WithValidator(v *validation.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// NewService wires an upload service.
func NewService(box *crypto.Box, docs *documents.Repositories, store Storage, auditor *audit.Auditor, opts ...Option) *Service {
	s := &Service{
		validator: validation.New(),
		box:       box,
		docs:      docs,
		storage:   store,
		policy:    documents.DefaultPolicy(),
		auditor:   auditor,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = monitoring.OrDiscard(s.logger)
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	return s
}

func (r Request) check() error {
	if r.PatientID == "" {
		return phierr.NewInvalidArgumentError("patient id", "is required")
	}
	if !r.Category.IsValid() {
		return phierr.NewInvalidArgumentError("document type", "is not a document category")
	}
	if r.UploadedBy == "" || r.UploadedByRole == "" {
		return phierr.NewInvalidArgumentError("uploader", "id and role are required")
	}
	allowed := r.Category.Table().PHIColumns
	for name := range r.PHI {
		if !slices.Contains(allowed, name) {
			return phierr.NewInvalidArgumentError("phi attribute", fmt.Sprintf("%q is not stored for %s", name, r.Category))
		}
	}
	return nil
}

// Upload validates the file and, when it passes, stores it and its row.
// Rejections are audited with the file hash and reasons and nothing is
// persisted.
func (s *Service) Upload(ctx context.Context, req Request) (*Result, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	entry := audit.AccessLogEntry{
		ActorID:      req.UploadedBy,
		ActorType:    req.UploadedByRole,
		DocumentType: req.Category.String(),
		PatientID:    req.PatientID,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}

	check := s.validator.Validate(req.Data, req.MimeType, req.FileName)
	entry.FileHash = check.FileHash
	if !check.Valid {
		entry.Action = audit.ActionUploadRejected
		entry.FailureReason = check.Reason()
		s.auditor.LogAccess(ctx, entry)
		s.logger.WarnContext(ctx, "upload rejected",
			"patient_id", req.PatientID,
			"document_type", req.Category.String(),
			"file_hash", check.FileHash,
			"reasons", check.Errors,
		)
		return &Result{Errors: check.Errors, FileHash: check.FileHash}, nil
	}

	doc := &documents.Document{
		PatientID:      req.PatientID,
		Kind:           req.Kind,
		CategoryCode:   req.CategoryCode,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		FileSize:       int64(len(req.Data)),
		FileHash:       check.FileHash,
		UploadedBy:     req.UploadedBy,
		UploadedByRole: req.UploadedByRole,

		AccessibleByLawFirm:         req.ShareWithLawFirm || req.UploadedByRole == documents.RoleLawFirm,
		AccessibleByMedicalProvider: req.UploadedByRole == documents.RoleMedicalProvider || s.policy.AutoApproves(req.Kind, req.CategoryCode),
	}
	for name, value := range req.PHI {
		encrypted, err := s.box.Encrypt(value)
		if err != nil {
			return nil, err
		}
		doc.SetEncrypted(name, encrypted)
	}

	stored, err := s.storage.Upload(ctx, storage.UploadInput{
		Data:     req.Data,
		OwnerID:  req.PatientID,
		Category: req.Category.String(),
		FileName: check.SecureFilename,
		MimeType: req.MimeType,
	})
	if err != nil {
		return nil, err
	}
	doc.StorageKey = stored.Key
	doc.StorageType = string(stored.StorageType)

	if err := s.docs.For(req.Category).Insert(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, stored.Key, stored.StorageType); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove object after insert failure",
				"storage_key", stored.Key,
				"error", delErr,
			)
		}
		return nil, err
	}

	entry.Action = audit.ActionUpload
	entry.DocumentID = doc.ID
	entry.Success = true
	s.auditor.LogAccess(ctx, entry)

	if err := s.notifier.CreateDocumentNotification(ctx, Notification{
		PatientID:      req.PatientID,
		AccessorID:     req.AccessorID,
		DocumentType:   req.Category,
		DocumentID:     doc.ID,
		UploadedBy:     req.UploadedBy,
		UploadedByRole: req.UploadedByRole,
	}); err != nil {
		s.logger.WarnContext(ctx, "document notification failed",
			"document_id", doc.ID,
			"error", err,
		)
	}

	return &Result{Accepted: true, FileHash: check.FileHash, Document: doc}, nil
}

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) CreateDocumentNotification(ctx context.Context, note Notification) error {
	monitoring.OrDiscard(n.Logger).InfoContext(ctx, "document notification",
		"patient_id", note.PatientID,
		"accessor_id", note.AccessorID,
		"document_type", note.DocumentType.String(),
		"document_id", note.DocumentID,
		"uploaded_by", note.UploadedBy,
		"uploaded_by_role", note.UploadedByRole,
	)
	return nil
}
