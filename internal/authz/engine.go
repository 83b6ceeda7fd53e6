package authz

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hengadev/phiguard/internal/audit"
	"github.com/hengadev/phiguard/internal/consent"
	"github.com/hengadev/phiguard/internal/crypto"
	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/monitoring"
	"github.com/hengadev/phiguard/internal/phierr"
)

// ConsentReader is the read side of the consent store.
type ConsentReader interface {
	HasRelationship(ctx context.Context, accessor consent.Accessor, patientID string) (bool, error)
	ActiveConsents(ctx context.Context, patientID string, accessor consent.Accessor) ([]consent.Record, error)
}

// DocumentSource returns the repository of a category.
type DocumentSource interface {
	For(c documents.Category) documents.Repository
}

// Engine evaluates access requests and audits every decision.
type Engine struct {
	consents ConsentReader
	docs     DocumentSource
	auditor  *audit.Auditor
	box      *crypto.Box
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine wires an Engine. box is used only to decrypt evidence for
// listings.
func NewEngine(consents ConsentReader, docs DocumentSource, auditor *audit.Auditor, box *crypto.Box, opts ...Option) *Engine {
	e := &Engine{
		consents: consents,
		docs:     docs,
		auditor:  auditor,
		box:      box,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = monitoring.OrDiscard(e.logger)
	return e
}

func validateAccessor(a consent.Accessor, patientID string) error {
	if !a.Type.IsValid() {
		return phierr.NewInvalidArgumentError("accessor type", "must be lawfirm or medical_provider")
	}
	if a.ID == "" || patientID == "" {
		return phierr.NewInvalidArgumentError("request", "accessor id and patient id are required")
	}
	return nil
}

// Authorize runs the relationship, consent and visibility checks in that
// order and stops at the first failure.
func (e *Engine) Authorize(ctx context.Context, req Request) (Decision, error) {
	if err := validateAccessor(req.Accessor, req.PatientID); err != nil {
		return Decision{}, err
	}
	if !req.Category.IsValid() {
		return Decision{}, phierr.NewInvalidArgumentError("document type", "is not a document category")
	}

	decision, err := e.decide(ctx, req)
	if err != nil {
		e.logger.ErrorContext(ctx, "authorization check failed",
			"accessor_type", req.Accessor.Type,
			"accessor_id", req.Accessor.ID,
			"document_type", req.Category.String(),
			"error", err,
		)
		return Decision{}, err
	}

	entry := audit.AccessLogEntry{
		ActorID:      req.Accessor.ID,
		ActorType:    string(req.Accessor.Type),
		DocumentType: req.Category.String(),
		DocumentID:   req.DocumentID,
		PatientID:    req.PatientID,
		Action:       audit.ActionView,
		Success:      decision.Authorized,
		IPAddress:    req.Client.IPAddress,
		UserAgent:    req.Client.UserAgent,
	}
	if decision.Authorized {
		entry.AccessReason = AccessTag(req.Accessor.Type, decision.ConsentType)
		entry.FileHash = decision.Document.FileHash
	} else {
		entry.FailureReason = string(decision.Reason)
	}
	e.auditor.LogAccess(ctx, entry)

	return decision, nil
}

func (e *Engine) decide(ctx context.Context, req Request) (Decision, error) {
	ok, err := e.consents.HasRelationship(ctx, req.Accessor, req.PatientID)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return deny(relationshipReason(req.Accessor.Type)), nil
	}

	records, err := e.consents.ActiveConsents(ctx, req.PatientID, req.Accessor)
	if err != nil {
		return Decision{}, err
	}
	grant := findGrant(records, req.Category)
	if grant == nil {
		return deny(ReasonNoActiveConsent), nil
	}

	doc, err := e.docs.For(req.Category).Get(ctx, req.DocumentID, req.PatientID)
	if errors.Is(err, phierr.ErrNotFound) {
		return deny(ReasonDocumentNotAccessible), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if req.Accessor.Type == consent.LawFirm && !doc.AccessibleByLawFirm {
		return deny(ReasonDocumentNotAccessible), nil
	}

	return Decision{Authorized: true, Document: doc, ConsentType: grant.Type}, nil
}

func findGrant(records []consent.Record, c documents.Category) *consent.Record {
	for i := range records {
		if records[i].Allows(c) {
			return &records[i]
		}
	}
	return nil
}

// ListAccessibleDocuments checks the relationship once, then returns, for
// each category covered by a consent, the patient's documents visible to the
// accessor. Evidence rows carry decrypted Display values.
func (e *Engine) ListAccessibleDocuments(ctx context.Context, req ListRequest) (Listing, error) {
	if err := validateAccessor(req.Accessor, req.PatientID); err != nil {
		return Listing{}, err
	}

	entry := audit.AccessLogEntry{
		ActorID:   req.Accessor.ID,
		ActorType: string(req.Accessor.Type),
		PatientID: req.PatientID,
		Action:    audit.ActionList,
		IPAddress: req.Client.IPAddress,
		UserAgent: req.Client.UserAgent,
	}

	ok, err := e.consents.HasRelationship(ctx, req.Accessor, req.PatientID)
	if err != nil {
		return Listing{}, err
	}
	if !ok {
		reason := relationshipReason(req.Accessor.Type)
		entry.FailureReason = string(reason)
		e.auditor.LogAccess(ctx, entry)
		return Listing{Reason: reason}, nil
	}

	records, err := e.consents.ActiveConsents(ctx, req.PatientID, req.Accessor)
	if err != nil {
		return Listing{}, err
	}

	listing := Listing{
		Authorized: true,
		Documents:  make(map[documents.Category][]ListedDocument),
		Consents:   records,
	}
	var tags []string
	for _, c := range documents.Categories() {
		grant := findGrant(records, c)
		if grant == nil {
			continue
		}
		docs, err := e.docs.For(c).ListForPatient(ctx, req.PatientID)
		if err != nil {
			return Listing{}, err
		}

		listed := make([]ListedDocument, 0, len(docs))
		for _, doc := range docs {
			if !visibleInListing(req.Accessor.Type, doc) {
				continue
			}
			listed = append(listed, e.present(ctx, doc))
		}
		listing.Documents[c] = listed
		tags = append(tags, c.String()+"="+AccessTag(req.Accessor.Type, grant.Type))
	}

	if len(tags) == 0 {
		entry.FailureReason = string(ReasonNoActiveConsent)
	} else {
		entry.Success = true
		entry.AccessReason = strings.Join(tags, ",")
	}
	e.auditor.LogAccess(ctx, entry)

	return listing, nil
}

// visibleInListing applies the per-document flags. Law firms need the law
// firm flag; providers do not see law-firm uploads unless the document was
// flagged for providers.
func visibleInListing(t consent.AccessorType, doc documents.Document) bool {
	switch t {
	case consent.LawFirm:
		return doc.AccessibleByLawFirm
	case consent.MedicalProvider:
		return doc.UploadedByRole != documents.RoleLawFirm || doc.AccessibleByMedicalProvider
	default:
		return false
	}
}

func (e *Engine) present(ctx context.Context, doc documents.Document) ListedDocument {
	listed := ListedDocument{Document: doc}
	if doc.Category != documents.Evidence {
		return listed
	}

	display, err := doc.Decrypted(e.box)
	if err != nil {
		listed.IntegrityFailure = true
		e.logger.Log(ctx, monitoring.SlogLevelCritical, "evidence could not be decrypted for listing",
			"document_id", doc.ID,
			"patient_id", doc.PatientID,
			"integrity_failure", errors.Is(err, phierr.ErrIntegrityFailure),
			"error", err,
		)
		return listed
	}
	listed.Display = display
	return listed
}
