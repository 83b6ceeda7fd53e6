package validation

import "regexp"

// ScanLimit bounds how much of a file the dangerous-content scan reads.
const ScanLimit = 8 * 1024

type dangerousPattern struct {
	description string
	re          *regexp.Regexp
}

var dangerousPatterns = []dangerousPattern{
	{"script tag", regexp.MustCompile(`(?i)<\s*/?\s*script`)},
	{"html markup", regexp.MustCompile(`(?i)<\s*(html|iframe|object|embed|svg)[\s>/]`)},
	{"PHP open tag", regexp.MustCompile(`(?i)<\?php`)},
	{"JSP/ASP open tag", regexp.MustCompile(`<%[\s=@!]`)},
	{"eval call", regexp.MustCompile(`(?i)\beval\s*\(`)},
	{"document reference", regexp.MustCompile(`(?i)\bdocument\.[a-z]`)},
	{"window reference", regexp.MustCompile(`(?i)\bwindow\.[a-z]`)},
	{"inline event handler", regexp.MustCompile(`(?i)\bon(load|error)\s*=`)},
	{"javascript URI", regexp.MustCompile(`(?i)javascript\s*:`)},
	{"data:text/html URI", regexp.MustCompile(`(?i)data\s*:\s*text/html`)},
}

// scanDangerous returns a description of every pattern found in the first
// ScanLimit bytes of data.
func scanDangerous(data []byte) []string {
	if len(data) > ScanLimit {
		data = data[:ScanLimit]
	}
	var found []string
	for _, p := range dangerousPatterns {
		if p.re.Match(data) {
			found = append(found, p.description)
		}
	}
	return found
}
