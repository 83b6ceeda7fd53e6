package crypto

// ReadField returns the display value of a PHI attribute stored as an
// encrypted twin plus a legacy plaintext twin. The encrypted twin wins
// whenever it is present; the plaintext twin is only read when the
// encrypted one is absent. Both absent yields nil.
func (b *Box) ReadField(encrypted, plaintext *string) (*string, error) {
	if encrypted != nil && *encrypted != "" {
		return b.Decrypt(*encrypted)
	}
	if plaintext != nil && *plaintext != "" {
		value := *plaintext
		return &value, nil
	}
	return nil, nil
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
