package template

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_Placeholders(t *testing.T) {
	tmpl, err := Parse("Hi {{ name : World : who to greet }}, see {{doc}} and {{name}} {{empty:}}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []Placeholder{
		{Raw: "{{ name : World : who to greet }}", Name: "name", Default: "World", HasDefault: true, Description: "who to greet", Start: 3, End: 36},
		{Raw: "{{doc}}", Name: "doc", Start: 42, End: 49},
		{Raw: "{{name}}", Name: "name", Start: 54, End: 62},
		{Raw: "{{empty:}}", Name: "empty", HasDefault: true, Start: 63, End: 73},
	}
	if diff := cmp.Diff(want, tmpl.Placeholders()); diff != "" {
		t.Fatalf("placeholders mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"name", "doc", "empty"}, tmpl.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DescriptionKeepsColons(t *testing.T) {
	tmpl := MustParse("{{url:http://localhost:8080}}")
	got := tmpl.Placeholders()[0]
	if got.Default != "http" || got.Description != "//localhost:8080" {
		t.Fatalf("unexpected split %+v", got)
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want []SyntaxError
	}{
		{
			name: "nested",
			src:  "a {{outer {{inner}} }}",
			want: []SyntaxError{{Message: "nested placeholder", Start: 2, End: 19, Line: 1, Column: 3}},
		},
		{
			name: "unterminated",
			src:  "line one\n  {{open",
			want: []SyntaxError{{Message: "unterminated placeholder", Start: 11, End: 17, Line: 2, Column: 3}},
		},
		{
			name: "empty name",
			src:  "{{ :x}}",
			want: []SyntaxError{{Message: "empty placeholder name", Start: 0, End: 7, Line: 1, Column: 1}},
		},
		{
			name: "trailing underscore",
			src:  "{{name_}}",
			want: []SyntaxError{{Message: `invalid name "name_": must not end with an underscore`, Start: 0, End: 9, Line: 1, Column: 1}},
		},
		{
			name: "several errors are all reported",
			src:  "{{1st}} ok {{good}} {{bad-name}}",
			want: []SyntaxError{
				{Message: `invalid name "1st": use letters, digits and underscores, starting with a letter or underscore`, Start: 0, End: 7, Line: 1, Column: 1},
				{Message: `invalid name "bad-name": use letters, digits and underscores, starting with a letter or underscore`, Start: 20, End: 32, Line: 1, Column: 21},
			},
		},
		{
			name: "column counts runes",
			src:  "héé {{}}",
			want: []SyntaxError{{Message: "empty placeholder name", Start: 6, End: 10, Line: 1, Column: 5}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			if !errors.Is(err, ErrSyntax) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			var errs SyntaxErrors
			if !errors.As(err, &errs) {
				t.Fatalf("expected SyntaxErrors, got %T", err)
			}
			got := make([]SyntaxError, 0, len(errs))
			for _, e := range errs {
				got = append(got, *e)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSyntaxError_Message(t *testing.T) {
	_, err := Parse("x\n{{a {{b}}")
	if err == nil || err.Error() != "template: 2:1: nested placeholder" {
		t.Fatalf("unexpected error text %v", err)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"a", "_private", "name1", "snake_case", "A_b_C"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("expected %q to be valid: %v", name, err)
		}
	}
	invalid := []string{"", "1abc", "has space", "dash-ed", "trailing_", "_", "ünïcode"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrSyntax) {
			t.Errorf("expected %q to be rejected, got %v", name, err)
		}
	}
}
