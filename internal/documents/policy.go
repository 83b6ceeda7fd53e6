package documents

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy flags documents as visible to medical providers at upload time.
// A document qualifies when its kind contains one of Keywords
// (case-insensitive) or its category code is listed in CategoryCodes.
type Policy struct {
	Keywords      []string `yaml:"keywords"`
	CategoryCodes []string `yaml:"category_codes"`
}

// DefaultPolicy covers police reports, body-cam and dash-cam footage,
// photographs and health-insurance cards.
func DefaultPolicy() Policy {
	return Policy{
		Keywords: []string{
			"police",
			"body cam", "bodycam", "body-cam",
			"dash cam", "dashcam", "dash-cam",
			"photo",
			"health insurance", "insurance card",
		},
		CategoryCodes: []string{"pre-1", "pre-2", "pre-3", "pre-4", "pre-5"},
	}
}

// ParsePolicy decodes a YAML policy. Keys that are absent keep their
// defaults; an explicit empty list disables that half of the rule.
func ParsePolicy(data []byte) (Policy, error) {
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("failed to parse auto-approval policy: %w", err)
	}
	return policy.normalized(), nil
}

// LoadPolicy reads a YAML policy file. An empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read auto-approval policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// Marshal encodes the policy as YAML.
func (p Policy) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// AutoApproves reports whether a document of the given kind and category
// code is visible to medical providers regardless of consent scope.
func (p Policy) AutoApproves(kind, categoryCode string) bool {
	code := strings.TrimSpace(categoryCode)
	for _, c := range p.CategoryCodes {
		if code != "" && strings.EqualFold(code, c) {
			return true
		}
	}

	kind = strings.ToLower(kind)
	for _, k := range p.Keywords {
		if k != "" && strings.Contains(kind, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func (p Policy) normalized() Policy {
	out := Policy{
		Keywords:      make([]string, 0, len(p.Keywords)),
		CategoryCodes: make([]string, 0, len(p.CategoryCodes)),
	}
	for _, k := range p.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			out.Keywords = append(out.Keywords, strings.ToLower(k))
		}
	}
	for _, c := range p.CategoryCodes {
		if c = strings.TrimSpace(c); c != "" {
			out.CategoryCodes = append(out.CategoryCodes, c)
		}
	}
	return out
}
