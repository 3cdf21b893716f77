package pdfdoc

import (
	"path/filepath"
	"strings"
)

// MakePath builds the stored document path for a user's upload. The
// filename is reduced to its base name and unsafe characters are
// replaced, then namespaced by username so two users can upload the
// same file.
func MakePath(root, username, filename string) string {
	name := SanitizeFilename(filename)
	return filepath.Join(root, username+"_"+name)
}

// SanitizeFilename strips directory components and replaces characters
// that are unsafe in a stored file name.
func SanitizeFilename(filename string) string {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return "unnamed"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
