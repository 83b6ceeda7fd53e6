package documents

import (
	"time"

	"github.com/hengadev/phiguard/internal/crypto"
)

// Uploader roles recorded on a document row.
const (
	RolePatient         = "patient"
	RoleLawFirm         = "lawfirm"
	RoleMedicalProvider = "medical_provider"
)

// Field is one PHI attribute: an encrypted twin and a legacy plaintext twin.
type Field struct {
	Encrypted *string
	Plaintext *string
}

// Document is a row of one of the category tables. PHI attributes are kept
// as stored; decrypting them is the reader's job.
type Document struct {
	ID           string
	PatientID    string
	Category     Category
	Kind         string
	CategoryCode string
	PHI          map[string]Field

	FileName    string
	MimeType    string
	FileSize    int64
	FileHash    string
	StorageKey  string
	StorageType string

	UploadedBy     string
	UploadedByRole string

	AccessibleByLawFirm         bool
	AccessibleByMedicalProvider bool

	CreatedAt time.Time
}

// Field returns the stored twins of a PHI attribute.
func (d *Document) Field(name string) Field {
	if d.PHI == nil {
		return Field{}
	}
	return d.PHI[name]
}

// SetEncrypted stores an encrypted value for a PHI attribute.
func (d *Document) SetEncrypted(name string, encrypted *string) {
	if d.PHI == nil {
		d.PHI = make(map[string]Field)
	}
	f := d.PHI[name]
	f.Encrypted = encrypted
	d.PHI[name] = f
}

// Decrypted reads every PHI attribute of the category through box,
// preferring the encrypted twin. Absent attributes are omitted.
func (d *Document) Decrypted(box *crypto.Box) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range d.Category.Table().PHIColumns {
		f := d.Field(name)
		value, err := box.ReadField(f.Encrypted, f.Plaintext)
		if err != nil {
			return nil, err
		}
		if value != nil {
			out[name] = *value
		}
	}
	return out, nil
}
