package afshost

import (
	"mime"
	"path"
	"strings"
)

var textExtensions = map[string]string{
	".md":       "text/markdown; charset=utf-8",
	".markdown": "text/markdown; charset=utf-8",
	".txt":      "text/plain; charset=utf-8",
	".go":       "text/x-go; charset=utf-8",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
	".toml":     "application/toml",
	".csv":      "text/csv; charset=utf-8",
	".log":      "text/plain; charset=utf-8",
}

func mimeByName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := textExtensions[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}
