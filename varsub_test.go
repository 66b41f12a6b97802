package varsub_test

import (
	"testing"

	"github.com/goliatone/go-varsub"
	"github.com/goliatone/go-varsub/pkg/handle"
	"github.com/goliatone/go-varsub/pkg/orchestrator"
	"github.com/goliatone/go-varsub/pkg/testsupport"
	"github.com/goliatone/go-varsub/pkg/variable"
)

func TestRender(t *testing.T) {
	reg := handle.NewRegistry()
	vars := []*varsub.Variable{
		testsupport.Variable("doc", testsupport.BindFile(t, reg, testsupport.NewFile("/repo/readme.md", "Hi"))),
	}
	result, err := varsub.Render(testsupport.Context(), "{{doc}}", vars, orchestrator.WithRegistry(reg))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.Output != "<readme.md>\nHi\n</readme.md>" || result.Sink != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubstitute(t *testing.T) {
	got := varsub.Substitute("Hello {{name:World}} {{who}}", map[string]varsub.Explicit{"who": {Value: "again", Valid: true}}, []*varsub.Variable{
		testsupport.Variable("unused", variable.NewText("x")),
	})
	if got != "Hello World again" {
		t.Fatalf("unexpected output %q", got)
	}
}
