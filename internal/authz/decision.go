// Package authz decides whether a law firm or medical provider may see a
// patient's document. Denials are Decisions with an enumerated Reason; only
// infrastructure failures come back as errors.
package authz

import (
	"github.com/hengadev/phiguard/internal/consent"
	"github.com/hengadev/phiguard/internal/documents"
)

// Reason explains a denial. The values are stable and safe to show callers.
type Reason string

const (
	ReasonNotLawFirmClient      Reason = "Patient is not a client of this law firm"
	ReasonNotProviderPatient    Reason = "Patient is not associated with this medical provider"
	ReasonNoActiveConsent       Reason = "No active consent on file for this document type"
	ReasonDocumentNotAccessible Reason = "Document not found or not accessible"
)

func relationshipReason(t consent.AccessorType) Reason {
	if t == consent.MedicalProvider {
		return ReasonNotProviderPatient
	}
	return ReasonNotLawFirmClient
}

// ClientInfo identifies the caller's network client for the audit trail.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Request asks for one document.
type Request struct {
	Accessor   consent.Accessor
	PatientID  string
	Category   documents.Category
	DocumentID string
	Client     ClientInfo
}

// Decision is the outcome of Authorize. When Authorized, Document is the raw
// row with PHI still encrypted and ConsentType names the grant that allowed
// it. Otherwise Reason is set.
type Decision struct {
	Authorized  bool
	Reason      Reason
	Document    *documents.Document
	ConsentType consent.Type
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// AccessTag labels an authorized access in the audit trail, for example
// LAW_FIRM_ACCESS_FULL_ACCESS.
func AccessTag(accessor consent.AccessorType, t consent.Type) string {
	switch accessor {
	case consent.MedicalProvider:
		return "MEDICAL_PROVIDER_ACCESS_" + string(t)
	default:
		return "LAW_FIRM_ACCESS_" + string(t)
	}
}

// ListRequest asks for everything an accessor may see of a patient.
type ListRequest struct {
	Accessor  consent.Accessor
	PatientID string
	Client    ClientInfo
}

// ListedDocument is a document in a listing. Display holds decrypted PHI for
// evidence rows. IntegrityFailure marks a row whose PHI could not be
// decrypted; its Display is empty.
type ListedDocument struct {
	documents.Document
	Display          map[string]string
	IntegrityFailure bool
}

// Listing is the outcome of ListAccessibleDocuments. Documents only has
// entries for categories covered by a consent.
type Listing struct {
	Authorized bool
	Reason     Reason
	Documents  map[documents.Category][]ListedDocument
	Consents   []consent.Record
}
