package manifest

import "strings"

// NormalizePath converts a manifest path to fs.ValidPath form.
//
// It performs the following transformations:
//   - Strips leading and trailing slashes: "/games/a.rom" → "games/a.rom"
//   - Collapses consecutive slashes: "games//a.rom" → "games/a.rom"
//   - Converts an empty path to the root: "" → "."
//
// "." and ".." elements are preserved so that fs.ValidPath rejects them.
func NormalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}
