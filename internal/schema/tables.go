package schema

// DocumentTable describes one document category table. PHIColumns lists the
// attributes stored as an encrypted twin (<name>_encrypted) next to a legacy
// plaintext twin (<name>).
type DocumentTable struct {
	Name       string
	PHIColumns []string
}

// Document tables, one per category.
var (
	MedicalRecordsTable = DocumentTable{
		Name:       "medical_records",
		PHIColumns: []string{"title", "description", "diagnosis", "facility_name"},
	}
	MedicalBillingTable = DocumentTable{
		Name:       "medical_billing",
		PHIColumns: []string{"title", "description", "provider_name"},
	}
	EvidenceTable = DocumentTable{
		Name:       "evidence",
		PHIColumns: []string{"title", "description", "location"},
	}
)

// DocumentTables returns every document table.
func DocumentTables() []DocumentTable {
	return []DocumentTable{MedicalRecordsTable, MedicalBillingTable, EvidenceTable}
}

// EncryptedColumn returns the name of the encrypted twin of a PHI column.
func EncryptedColumn(column string) string {
	return column + "_encrypted"
}
