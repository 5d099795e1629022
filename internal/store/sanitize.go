package store

import (
	"fmt"
	"strings"
)

// MaxAgentIDLength is the longest sanitized agent identifier the store
// will derive a file name from. Longer inputs are truncated.
const MaxAgentIDLength = 64

// SanitizeAgentID maps an arbitrary agent identifier onto the safe
// character set used to form storage locations. Any character outside
// [A-Za-z0-9_-] becomes an underscore, which also neutralizes path
// separators and traversal sequences. Empty and NUL-containing
// identifiers are rejected outright.
func SanitizeAgentID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("agent id is empty")
	}
	if strings.ContainsRune(id, 0) {
		return "", fmt.Errorf("agent id contains a NUL byte")
	}

	var sb strings.Builder
	sb.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	sanitized := sb.String()
	if len(sanitized) > MaxAgentIDLength {
		sanitized = sanitized[:MaxAgentIDLength]
	}
	return sanitized, nil
}
