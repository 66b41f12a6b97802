// Package template parses placeholder templates and substitutes resolved
// variable values into them.
//
// Placeholders use the form {{name}}, {{name:default}} or
// {{name:default:description}}. Whitespace around each part is ignored.
// Parsing reports every syntax problem with its position before any
// placeholder is extracted; substitution itself is pure and never performs
// I/O.
package template

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// ErrSyntax is matched by every SyntaxError.
var ErrSyntax = errors.New("template: syntax error")

// SyntaxError describes one malformed placeholder. Start and End are byte
// offsets into the source; Line and Column are 1-based, Column in runes.
type SyntaxError struct {
	Message string
	Start   int
	End     int
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return "template: " + e.Message
	}
	return fmt.Sprintf("template: %d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// SyntaxErrors is the list returned by Parse.
type SyntaxErrors []*SyntaxError

func (errs SyntaxErrors) Error() string {
	switch len(errs) {
	case 0:
		return "template: no errors"
	case 1:
		return errs[0].Error()
	default:
		parts := make([]string, 0, len(errs))
		for _, err := range errs {
			parts = append(parts, err.Error())
		}
		return fmt.Sprintf("template: %d syntax errors: %s", len(errs), strings.Join(parts, "; "))
	}
}

func (errs SyntaxErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = err
	}
	return out
}

// Placeholder is one well formed {{...}} occurrence.
type Placeholder struct {
	Raw         string
	Name        string
	Default     string
	HasDefault  bool
	Description string
	Start       int
	End         int
}

// Template is a parsed source.
type Template struct {
	source       string
	placeholders []Placeholder
}

// Parse scans src. Any syntax problem fails the whole template.
func Parse(src string) (*Template, error) {
	placeholders, errs := scan(src)
	if len(errs) > 0 {
		return nil, errs
	}
	return &Template{source: src, placeholders: placeholders}, nil
}

// MustParse panics on syntax errors.
func MustParse(src string) *Template {
	t, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the original text.
func (t *Template) Source() string {
	return t.source
}

// Placeholders returns every occurrence in source order.
func (t *Template) Placeholders() []Placeholder {
	return append([]Placeholder(nil), t.placeholders...)
}

// Names returns distinct placeholder names in order of first appearance.
func (t *Template) Names() []string {
	return distinctNames(t.placeholders)
}

func distinctNames(placeholders []Placeholder) []string {
	seen := make(map[string]struct{}, len(placeholders))
	var out []string
	for _, p := range placeholders {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p.Name)
	}
	return out
}

// scan collects well formed placeholders and syntax errors. Scanning
// continues after an error so every problem is reported at once.
func scan(src string) ([]Placeholder, SyntaxErrors) {
	var (
		out  []Placeholder
		errs SyntaxErrors
		pos  int
	)
	for pos < len(src) {
		open := strings.Index(src[pos:], openDelim)
		if open < 0 {
			break
		}
		start := pos + open
		body := src[start+len(openDelim):]

		closing := strings.Index(body, closeDelim)
		if closing < 0 {
			errs = append(errs, newSyntaxError(src, start, len(src), "unterminated placeholder"))
			break
		}
		end := start + len(openDelim) + closing + len(closeDelim)

		if nested := strings.Index(body, openDelim); nested >= 0 && nested < closing {
			errs = append(errs, newSyntaxError(src, start, end, "nested placeholder"))
			pos = end
			continue
		}

		p, msg := parsePlaceholder(body[:closing])
		if msg != "" {
			errs = append(errs, newSyntaxError(src, start, end, msg))
			pos = end
			continue
		}
		p.Raw = src[start:end]
		p.Start = start
		p.End = end
		out = append(out, p)
		pos = end
	}
	return out, errs
}

func parsePlaceholder(inner string) (Placeholder, string) {
	parts := strings.SplitN(inner, ":", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p := Placeholder{Name: parts[0]}
	if len(parts) > 1 {
		p.Default = parts[1]
		p.HasDefault = true
	}
	if len(parts) > 2 {
		p.Description = parts[2]
	}
	if msg := nameProblem(p.Name); msg != "" {
		return Placeholder{}, msg
	}
	return p, ""
}

func newSyntaxError(src string, start, end int, msg string) *SyntaxError {
	line, col := position(src, start)
	return &SyntaxError{Message: msg, Start: start, End: end, Line: line, Column: col}
}

func position(src string, offset int) (line, col int) {
	before := src[:offset]
	line = strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	col = utf8.RuneCountInString(before[lineStart:]) + 1
	return line, col
}
