// Package consent models the relationships and consent grants that let a law
// firm or medical provider see a patient's documents, and stores them.
package consent

import (
	"fmt"
	"time"

	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/phierr"
)

// AccessorType identifies the class of external party asking for access.
type AccessorType string

const (
	LawFirm         AccessorType = "lawfirm"
	MedicalProvider AccessorType = "medical_provider"
)

// IsValid reports whether t is a known accessor class.
func (t AccessorType) IsValid() bool {
	switch t {
	case LawFirm, MedicalProvider:
		return true
	default:
		return false
	}
}

// ParseAccessorType validates s as an AccessorType.
func ParseAccessorType(s string) (AccessorType, error) {
	t := AccessorType(s)
	if !t.IsValid() {
		return "", phierr.NewInvalidArgumentError("accessor type", fmt.Sprintf("%q is not an accessor type", s))
	}
	return t, nil
}

// Accessor is a law firm or medical provider entity.
type Accessor struct {
	Type AccessorType
	ID   string
}

// Type is the breadth of a consent grant.
type Type string

const (
	FullAccess         Type = "FULL_ACCESS"
	MedicalRecordsOnly Type = "MEDICAL_RECORDS_ONLY"
	BillingOnly        Type = "BILLING_ONLY"
	Custom             Type = "CUSTOM"
)

// IsValid reports whether t is a known consent type.
func (t Type) IsValid() bool {
	switch t {
	case FullAccess, MedicalRecordsOnly, BillingOnly, Custom:
		return true
	default:
		return false
	}
}

// ParseType validates s as a consent Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", phierr.NewInvalidArgumentError("consent type", fmt.Sprintf("%q is not a consent type", s))
	}
	return t, nil
}

// Allows reports whether a grant of type t covers category c. Scopes are
// only consulted for Custom grants; a category without a viewable scope row
// is not granted.
func (t Type) Allows(c documents.Category, scopes []Scope) bool {
	switch t {
	case FullAccess:
		return c.IsValid()
	case MedicalRecordsOnly:
		return c == documents.MedicalRecords
	case BillingOnly:
		return c == documents.MedicalBilling
	case Custom:
		for _, s := range scopes {
			if s.DataType == c && s.CanView {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Status is the lifecycle state of a consent record.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// RelationshipStatus is the state of a provider/patient link.
type RelationshipStatus string

const (
	RelationshipActive   RelationshipStatus = "active"
	RelationshipInactive RelationshipStatus = "inactive"
)

// Scope grants or withholds one document category under a Custom consent.
type Scope struct {
	ID        string
	ConsentID string
	DataType  documents.Category
	CanView   bool
}

// Record is a consent row together with its scopes.
type Record struct {
	ID        string
	PatientID string
	GrantedTo Accessor
	Type      Type
	Status    Status
	ExpiresAt *time.Time
	SignedAt  time.Time
	RevokedAt *time.Time
	Scopes    []Scope
}

// Usable reports whether the record can authorize access at now: it must be
// active and either open-ended or expiring after now.
func (r Record) Usable(now time.Time) bool {
	if r.Status != StatusActive {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// Allows reports whether the record covers category c.
func (r Record) Allows(c documents.Category) bool {
	return r.Type.Allows(c, r.Scopes)
}
