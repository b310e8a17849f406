package parser

import (
	"path/filepath"
	"strings"
)

// Separator joins scope segments of a qualified name.
const Separator = "."

// FileIdentifier returns the leading segment used to qualify a file's
// symbols: the base name without extension.
func FileIdentifier(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Qualify joins non-empty segments with the separator.
func Qualify(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, Separator)
}

// BareName returns the final unqualified segment of name.
func BareName(name string) string {
	if idx := strings.LastIndex(name, Separator); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// Collapse reduces a qualified name to file.leafName. Names with two or fewer
// segments are returned unchanged.
func Collapse(name string) string {
	parts := strings.Split(name, Separator)
	if len(parts) <= 2 {
		return name
	}
	return parts[0] + Separator + parts[len(parts)-1]
}
