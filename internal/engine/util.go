package engine

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// newHostToken returns the per-room host secret: 16 random bytes, hex.
func newHostToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// dedupeItems drops blanks and case-insensitive duplicates. The first-seen
// casing wins and the original order is kept.
func dedupeItems(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, raw := range items {
		cleaned := strings.TrimSpace(raw)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}
