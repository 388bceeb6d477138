package domain

import "strings"

// Lead is a prospective contact submitted for outbound SMS outreach.
type Lead struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name,omitempty"`
}

// NormalizePhone strips formatting characters and ensures a leading "+",
// so the same number always maps to the same conversation key.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	n := b.String()
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return n
}
