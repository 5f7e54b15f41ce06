package util

import "strings"

const maxSlugLen = 100

var slugReplacer = strings.NewReplacer(
	`\`, "",
	"/", "",
	"*", "",
	"?", "",
	":", "",
	`"`, "",
	"<", "",
	">", "",
	"|", "",
)

// Slug derives a filesystem-safe name: strips the reserved character class
// [\/*?:"<>|], replaces spaces with underscores, trims, and truncates to
// 100 characters. Idempotent.
func Slug(name string) string {
	s := slugReplacer.Replace(name)
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	if r := []rune(s); len(r) > maxSlugLen {
		s = string(r[:maxSlugLen])
	}
	return s
}

// ExtFromURL chooses a file extension by substring test of the URL, the
// same heuristic the chapter downloader applies to image src attributes.
func ExtFromURL(u string) string {
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, ".png"):
		return "png"
	case strings.Contains(lower, ".gif"):
		return "gif"
	case strings.Contains(lower, ".webp"):
		return "webp"
	default:
		return "jpg"
	}
}
