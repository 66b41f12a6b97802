package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-varsub/pkg/template"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [files...]",
		Short: "Report template syntax errors; checks stored templates when no files are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			type source struct{ name, body string }
			var sources []source
			if len(args) == 0 {
				stored, err := a.store.Templates().List(ctx)
				if err != nil {
					return err
				}
				for _, t := range stored {
					sources = append(sources, source{name: t.Name, body: t.Body})
				}
			}
			for _, path := range args {
				body, err := readLocation(ctx, path)
				if err != nil {
					return err
				}
				sources = append(sources, source{name: path, body: body})
			}

			failed := 0
			for _, src := range sources {
				if !a.checkOne(src.name, src.body) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d templates have syntax errors", failed, len(sources))
			}
			return nil
		},
	}
}

func (a *app) checkOne(name, body string) bool {
	tmpl, err := template.Parse(body)
	if err == nil {
		fmt.Fprintf(a.out, "%s: ok (%d placeholders)\n", name, len(tmpl.Names()))
		return true
	}
	var errs template.SyntaxErrors
	if !errors.As(err, &errs) {
		fmt.Fprintf(a.errOut, "%s: %v\n", name, err)
		return false
	}
	for _, e := range errs {
		fmt.Fprintf(a.errOut, "%s:%d:%d: %s\n", name, e.Line, e.Column, e.Message)
	}
	return false
}
