package phiguard

import (
	"github.com/hengadev/phiguard/internal/authz"
	"github.com/hengadev/phiguard/internal/consent"
	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/health"
	"github.com/hengadev/phiguard/internal/upload"
	"github.com/hengadev/phiguard/providers/storage"
)

// Consent and accessor types.
type (
	Accessor           = consent.Accessor
	AccessorType       = consent.AccessorType
	ConsentType        = consent.Type
	ConsentRecord      = consent.Record
	RelationshipStatus = consent.RelationshipStatus
	GrantInput         = consent.GrantInput
	ScopeInput         = consent.ScopeInput
)

const (
	LawFirm         = consent.LawFirm
	MedicalProvider = consent.MedicalProvider

	FullAccess         = consent.FullAccess
	MedicalRecordsOnly = consent.MedicalRecordsOnly
	BillingOnly        = consent.BillingOnly
	CustomConsent      = consent.Custom

	RelationshipActive   = consent.RelationshipActive
	RelationshipInactive = consent.RelationshipInactive
)

// Document types.
type (
	Category = documents.Category
	Document = documents.Document
	Policy   = documents.Policy
)

const (
	MedicalRecords = documents.MedicalRecords
	MedicalBilling = documents.MedicalBilling
	Evidence       = documents.Evidence
)

// Authorization types.
type (
	AccessRequest  = authz.Request
	ClientInfo     = authz.ClientInfo
	Decision       = authz.Decision
	Reason         = authz.Reason
	ListRequest    = authz.ListRequest
	Listing        = authz.Listing
	ListedDocument = authz.ListedDocument
)

// Upload types.
type (
	UploadRequest = upload.Request
	UploadResult  = upload.Result
	Notifier      = upload.Notifier
	Notification  = upload.Notification
)

// DownloadURL is a time-limited link to a stored object.
type DownloadURL = storage.DownloadURL

// HealthReport is the outcome of Core.Health.
type HealthReport = health.Report

// HealthCheck is a named probe registered with WithHealthCheck.
type HealthCheck = health.Check

const (
	HealthHealthy   = health.StatusHealthy
	HealthDegraded  = health.StatusDegraded
	HealthUnhealthy = health.StatusUnhealthy
)
