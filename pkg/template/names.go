package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-varsub/pkg/variable"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func nameProblem(name string) string {
	switch {
	case name == "":
		return "empty placeholder name"
	case !namePattern.MatchString(name):
		return fmt.Sprintf("invalid name %q: use letters, digits and underscores, starting with a letter or underscore", name)
	case strings.HasSuffix(name, "_"):
		return fmt.Sprintf("invalid name %q: must not end with an underscore", name)
	default:
		return ""
	}
}

// ValidateName checks a variable name against the placeholder grammar.
func ValidateName(name string) error {
	if msg := nameProblem(name); msg != "" {
		return &SyntaxError{Message: msg}
	}
	return nil
}

// ValidateVariables reports invalid and duplicate variable names.
func ValidateVariables(vars []*variable.Variable) error {
	var errs []error
	seen := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		if v == nil {
			continue
		}
		if err := ValidateName(v.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[v.Name]; dup {
			errs = append(errs, &SyntaxError{Message: fmt.Sprintf("duplicate variable name %q", v.Name)})
			continue
		}
		seen[v.Name] = struct{}{}
	}
	return errors.Join(errs...)
}
