package readiness

import (
	"net/url"
	"strings"
)

// EvidenceTypes are the accepted evidence kinds.
var EvidenceTypes = []string{"link", "document", "screenshot", "video"}

// ValidEvidenceType reports whether t is a known evidence kind.
func ValidEvidenceType(t string) bool {
	for _, known := range EvidenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValidateEvidence checks an evidence submission. The URL must be absolute.
func ValidateEvidence(title, rawURL, evType string) error {
	if strings.TrimSpace(title) == "" {
		return ValidationError{Field: "title", Reason: "required"}
	}
	if !ValidEvidenceType(evType) {
		return ValidationError{Field: "type", Reason: "must be one of link, document, screenshot, video"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "url", Reason: "must be an absolute URL"}
	}
	return nil
}

// HasRequiredEvidence reports whether a check carries at least minRequired
// evidence items.
func HasRequiredEvidence(count, minRequired int) bool {
	if minRequired <= 0 {
		minRequired = 1
	}
	return count >= minRequired
}
