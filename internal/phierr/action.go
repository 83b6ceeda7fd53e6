package phierr

type Action int8

const (
	Unknown Action = iota
	Encrypt
	Decrypt
	Hash
	Validate
	Authorize
	Audit
)

func (a Action) String() string {
	actions := map[Action]string{
		Unknown:   "unknown",
		Encrypt:   "encrypt",
		Decrypt:   "decrypt",
		Hash:      "hash",
		Validate:  "validate",
		Authorize: "authorize",
		Audit:     "audit",
	}

	if str, ok := actions[a]; ok {
		return str
	}
	return "unknown"
}
