package resolver

import (
	"strings"

	"github.com/goliatone/go-varsub/pkg/variable"
)

const defaultTag = "file"

var (
	escaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)

// SanitizeTag maps every character outside [A-Za-z0-9_.-] to '_'. An empty
// name becomes "file".
func SanitizeTag(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultTag
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// TagFor derives the wrapper tag from a path's base name.
func TagFor(path string) string {
	return SanitizeTag(variable.BaseName(path))
}

// Escape replaces &, < and > with entities.
func Escape(content string) string {
	return escaper.Replace(content)
}

// Unescape reverses Escape.
func Unescape(content string) string {
	return unescaper.Replace(content)
}

// Wrap delimits already escaped content with tag.
func Wrap(tag, content string) string {
	if tag == "" {
		tag = defaultTag
	}
	return "<" + tag + ">\n" + content + "\n</" + tag + ">"
}

// Unwrap splits a wrapped value into its tag and still escaped content.
func Unwrap(value string) (tag, content string, ok bool) {
	if !strings.HasPrefix(value, "<") {
		return "", "", false
	}
	end := strings.Index(value, ">\n")
	if end < 2 {
		return "", "", false
	}
	tag = value[1:end]
	if SanitizeTag(tag) != tag {
		return "", "", false
	}
	closing := "\n</" + tag + ">"
	body := value[end+2:]
	if !strings.HasSuffix(body, closing) {
		return "", "", false
	}
	return tag, strings.TrimSuffix(body, closing), true
}

// IsWrapped reports whether value is tag-wrapped content.
func IsWrapped(value string) bool {
	_, _, ok := Unwrap(value)
	return ok
}
