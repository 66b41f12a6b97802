package template

import (
	"strings"

	"github.com/goliatone/go-varsub/pkg/resolver"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// Explicit is a value supplied by the caller for one placeholder. Only valid
// values take part in substitution.
type Explicit struct {
	Value string
	Valid bool
}

// Option configures a Substituter.
type Option func(*Substituter)

// WithJoinResolved substitutes every resolved file entry of a variable,
// joined by sep, instead of only the first.
func WithJoinResolved(sep string) Option {
	return func(s *Substituter) {
		s.join = true
		s.sep = sep
	}
}

// Substituter replaces placeholders with already resolved values.
type Substituter struct {
	join bool
	sep  string
}

// NewSubstituter constructs a Substituter.
func NewSubstituter(options ...Option) *Substituter {
	s := &Substituter{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Substitute uses the default Substituter.
func Substitute(src string, explicit map[string]Explicit, vars []*variable.Variable) string {
	return NewSubstituter().Substitute(src, explicit, vars)
}

// Substitute returns src with every placeholder that has a value replaced.
// Placeholders without a value are echoed back. A template with syntax
// errors is returned unchanged.
func (s *Substituter) Substitute(src string, explicit map[string]Explicit, vars []*variable.Variable) string {
	tmpl, err := Parse(src)
	if err != nil {
		return src
	}
	return s.Execute(tmpl, explicit, vars)
}

// Execute substitutes into a parsed template.
func (s *Substituter) Execute(tmpl *Template, explicit map[string]Explicit, vars []*variable.Variable) string {
	out, _ := s.Apply(tmpl, explicit, vars)
	return out
}

// Apply is Execute that also returns the distinct names of placeholders left
// in place. Content inserted from variables is not inspected.
func (s *Substituter) Apply(tmpl *Template, explicit map[string]Explicit, vars []*variable.Variable) (string, []string) {
	byName := make(map[string]*variable.Variable, len(vars))
	for _, v := range vars {
		if v == nil {
			continue
		}
		if _, ok := byName[v.Name]; !ok {
			byName[v.Name] = v
		}
	}

	var (
		b      strings.Builder
		intact []Placeholder
	)
	b.Grow(len(tmpl.source))
	last := 0
	for _, p := range tmpl.placeholders {
		b.WriteString(tmpl.source[last:p.Start])
		if value, ok := s.valueFor(p, explicit, byName[p.Name]); ok {
			b.WriteString(value)
		} else {
			b.WriteString(p.Raw)
			intact = append(intact, p)
		}
		last = p.End
	}
	b.WriteString(tmpl.source[last:])
	return b.String(), distinctNames(intact)
}

func (s *Substituter) valueFor(p Placeholder, explicit map[string]Explicit, v *variable.Variable) (string, bool) {
	if e, ok := explicit[p.Name]; ok && e.Valid {
		return e.Value, true
	}

	if v != nil && v.HasReferences() {
		var resolved []string
		pending := false
		for _, entry := range v.Entries {
			if entry.Kind != variable.KindFile {
				continue
			}
			switch {
			case hasContent(entry):
				resolved = append(resolved, entry.Value)
			case !entry.Failed():
				pending = true
			}
		}
		if len(resolved) > 0 {
			if s.join {
				return strings.Join(resolved, s.sep), true
			}
			return resolved[0], true
		}
		if pending {
			return "", false
		}
	}

	if v != nil {
		for _, entry := range v.Entries {
			if entry.Kind == variable.KindText {
				return entry.Value, true
			}
		}
		if len(v.Entries) > 0 {
			if value, ok := display(v.Entries[0]); ok {
				return value, true
			}
		}
	}

	if p.HasDefault {
		return p.Default, true
	}
	return "", false
}

// hasContent reports whether a file entry carries resolved text.
func hasContent(entry variable.Entry) bool {
	if entry.Failed() {
		return false
	}
	return entry.IsResolved() || resolver.IsWrapped(entry.Value)
}

func display(entry variable.Entry) (string, bool) {
	switch entry.Kind {
	case variable.KindText:
		return entry.Value, true
	case variable.KindFile, variable.KindDirectory:
		return "[File: " + entry.SourcePath() + "]", true
	default:
		return "", false
	}
}
