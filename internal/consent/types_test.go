package consent

import (
	"testing"
	"time"

	"github.com/hengadev/phiguard/internal/documents"
	"github.com/hengadev/phiguard/internal/phierr"
	"github.com/stretchr/testify/assert"
)

func TestType_Allows(t *testing.T) {
	billingScope := []Scope{{DataType: documents.MedicalBilling, CanView: true}}
	hiddenScope := []Scope{{DataType: documents.Evidence, CanView: false}}

	tests := []struct {
		name     string
		typ      Type
		scopes   []Scope
		category documents.Category
		expected bool
	}{
		{"full access records", FullAccess, nil, documents.MedicalRecords, true},
		{"full access billing", FullAccess, nil, documents.MedicalBilling, true},
		{"full access evidence", FullAccess, nil, documents.Evidence, true},
		{"full access invalid category", FullAccess, nil, documents.Category(0), false},
		{"records only records", MedicalRecordsOnly, nil, documents.MedicalRecords, true},
		{"records only billing", MedicalRecordsOnly, nil, documents.MedicalBilling, false},
		{"records only evidence", MedicalRecordsOnly, nil, documents.Evidence, false},
		{"billing only billing", BillingOnly, nil, documents.MedicalBilling, true},
		{"billing only records", BillingOnly, nil, documents.MedicalRecords, false},
		{"custom scoped", Custom, billingScope, documents.MedicalBilling, true},
		{"custom unscoped category", Custom, billingScope, documents.MedicalRecords, false},
		{"custom scope without view", Custom, hiddenScope, documents.Evidence, false},
		{"custom without scopes", Custom, nil, documents.MedicalBilling, false},
		{"unknown type", Type("EVERYTHING"), nil, documents.MedicalRecords, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.typ.Allows(tt.category, tt.scopes))
		})
	}
}

func TestRecord_Usable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, Record{Status: StatusActive}.Usable(now))
	assert.True(t, Record{Status: StatusActive, ExpiresAt: &future}.Usable(now))
	assert.False(t, Record{Status: StatusActive, ExpiresAt: &past}.Usable(now))
	assert.False(t, Record{Status: StatusActive, ExpiresAt: &now}.Usable(now))
	assert.False(t, Record{Status: StatusRevoked}.Usable(now))
}

func TestParse(t *testing.T) {
	typ, err := ParseType("BILLING_ONLY")
	assert.NoError(t, err)
	assert.Equal(t, BillingOnly, typ)

	_, err = ParseType("billing_only")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)

	accessor, err := ParseAccessorType("medical_provider")
	assert.NoError(t, err)
	assert.Equal(t, MedicalProvider, accessor)

	_, err = ParseAccessorType("patient")
	assert.ErrorIs(t, err, phierr.ErrInvalidArgument)
}
