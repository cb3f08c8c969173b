package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a SQL injection pattern found in free text.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Fragment    string // The fragment that triggered detection
}

// CheckTextForInjection runs libinjection over a user question and over each
// of its lines, since payloads are often pasted as a separate line after an
// innocent-looking sentence. Returns nil when nothing is detected.
//
// Example:
//
//	CheckTextForInjection("which barns had fever last week?")  // nil
//	CheckTextForInjection("farm A' OR '1'='1")                   // IsSQLi == true
func CheckTextForInjection(text string) *InjectionCheckResult {
	candidates := []string{text}
	if strings.Contains(text, "\n") {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				candidates = append(candidates, line)
			}
		}
	}

	for _, fragment := range candidates {
		if isSQLi, fingerprint := libinjection.IsSQLi(fragment); isSQLi {
			return &InjectionCheckResult{
				IsSQLi:      true,
				Fingerprint: string(fingerprint),
				Fragment:    fragment,
			}
		}
	}

	return nil
}
