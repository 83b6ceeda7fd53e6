package validation

import "bytes"

// signature is a magic-byte prefix expected at a fixed offset.
type signature struct {
	offset int
	magic  []byte
}

// matcher reports whether the leading bytes of a file match a format.
type matcher struct {
	name    string
	minSize int
	match   func(data []byte) bool
}

func prefix(name string, signatures ...signature) matcher {
	minSize := 0
	for _, sig := range signatures {
		if n := sig.offset + len(sig.magic); minSize == 0 || n < minSize {
			minSize = n
		}
	}
	return matcher{
		name:    name,
		minSize: minSize,
		match: func(data []byte) bool {
			for _, sig := range signatures {
				end := sig.offset + len(sig.magic)
				if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.magic) {
					return true
				}
			}
			return false
		},
	}
}

// heifBrands are the ftyp major brands accepted for HEIC uploads.
var heifBrands = [][]byte{[]byte("heic"), []byte("mif1")}

var heic = matcher{
	name:    "HEIC",
	minSize: 12,
	match: func(data []byte) bool {
		if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
			return false
		}
		for _, brand := range heifBrands {
			if bytes.Equal(data[8:12], brand) {
				return true
			}
		}
		return false
	},
}

var (
	jpeg  = prefix("JPEG", signature{magic: []byte{0xFF, 0xD8, 0xFF}})
	png   = prefix("PNG", signature{magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}})
	pdf   = prefix("PDF", signature{magic: []byte("%PDF")})
	ole   = prefix("DOC", signature{magic: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}})
	ooxml = prefix("DOCX", signature{magic: []byte{0x50, 0x4B, 0x03, 0x04}})
)

// signatures maps a declared MIME type to the format its bytes must match.
// Types absent from this table are not signature checked.
var signatures = map[string]matcher{
	"image/jpeg":         jpeg,
	"image/jpg":          jpeg,
	"image/pjpeg":        jpeg,
	"image/png":          png,
	"application/pdf":    pdf,
	"application/msword": ole,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ooxml,
	"image/heic":         heic,
	"image/heif":         heic,
}

// KnownMimeTypes returns the declared types that carry a signature check.
func KnownMimeTypes() []string {
	types := make([]string, 0, len(signatures))
	for mimeType := range signatures {
		types = append(types, mimeType)
	}
	return types
}
