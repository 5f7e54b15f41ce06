package util

import "strings"

// FirstNonEmpty returns the first non-empty string (after trimming).
func FirstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
