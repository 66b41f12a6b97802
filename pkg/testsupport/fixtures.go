package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// BindFile registers f and returns a file entry pointing at it.
func BindFile(t *testing.T, reg *handle.Registry, f handle.Handle) variable.Entry {
	t.Helper()

	id, err := reg.Register(f)
	if err != nil {
		t.Fatalf("register file: %v", err)
	}
	return variable.NewFile(f.Path(), id)
}

// BindDir registers d and returns a directory entry pointing at it.
func BindDir(t *testing.T, reg *handle.Registry, d handle.Handle, recursive *variable.RecursiveOptions) variable.Entry {
	t.Helper()

	id, err := reg.Register(d)
	if err != nil {
		t.Fatalf("register directory: %v", err)
	}
	return variable.NewDirectory(d.Path(), id, recursive)
}

// Variable builds a variable with the supplied entries.
func Variable(name string, entries ...variable.Entry) *variable.Variable {
	return &variable.Variable{ID: "var-" + name, Name: name, Entries: entries}
}

// LoadVariables reads a JSON fixture holding a list of variables.
func LoadVariables(path string) ([]variable.Variable, error) {
	if path == "" {
		return nil, errors.New("testsupport: variables path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read variables: %w", err)
	}
	var out []variable.Variable
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("testsupport: unmarshal variables: %w", err)
	}
	return out, nil
}

// MustLoadVariables is LoadVariables for tests.
func MustLoadVariables(t *testing.T, path string) []variable.Variable {
	t.Helper()

	out, err := LoadVariables(path)
	if err != nil {
		t.Fatalf("load variables: %v", err)
	}
	return out
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
