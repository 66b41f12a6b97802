package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-varsub/pkg/variable"
)

func newVarsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Manage stored variables",
	}
	cmd.AddCommand(
		newVarsListCmd(a),
		newVarsAddTextCmd(a),
		newVarsAddFileCmd(a),
		newVarsAddDirCmd(a),
		newVarsRmCmd(a),
	)
	return cmd
}

func newVarsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List variables and their entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars, err := a.store.Variables().List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tVALUE")
			for _, v := range vars {
				if len(v.Entries) == 0 {
					fmt.Fprintf(w, "%s\t-\t\n", v.Name)
				}
				for _, entry := range v.Entries {
					fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, entry.Kind, describe(entry))
				}
			}
			return w.Flush()
		},
	}
}

func describe(entry variable.Entry) string {
	if entry.IsReference() {
		return entry.SourcePath()
	}
	value := strings.ReplaceAll(entry.Value, "\n", `\n`)
	if len(value) > 60 {
		value = value[:57] + "..."
	}
	return value
}

func newVarsAddTextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-text NAME VALUE",
		Short: "Store a literal text variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.addVariable(cmd, args[0], variable.NewText(args[1]))
		},
	}
}

func newVarsAddFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-file NAME PATH...",
		Short: "Store a variable referencing one or more files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := a.host()
			entries := make([]variable.Entry, 0, len(args)-1)
			for _, path := range args[1:] {
				file, err := host.OpenFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				entries = append(entries, variable.NewFile(file.Path(), ""))
			}
			return a.addVariable(cmd, args[0], entries...)
		},
	}
}

func newVarsAddDirCmd(a *app) *cobra.Command {
	var rec variable.RecursiveOptions
	cmd := &cobra.Command{
		Use:   "add-dir NAME PATH",
		Short: "Store a variable referencing a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.host().OpenDirectory(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.addVariable(cmd, args[0], variable.NewDirectory(dir.Path(), "", &rec))
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&rec.Enabled, "recursive", true, "expand the directory when rendering")
	flags.IntVar(&rec.MaxDepth, "depth", 0, "maximum expansion depth (0 uses the configured default)")
	flags.StringSliceVar(&rec.Include, "include", nil, "glob patterns to include, e.g. '**/*.md'")
	flags.StringSliceVar(&rec.Exclude, "exclude", nil, "glob patterns to exclude")
	return cmd
}

func (a *app) addVariable(cmd *cobra.Command, name string, entries ...variable.Entry) error {
	created, err := a.store.Variables().Create(cmd.Context(), variable.Variable{Name: name, Entries: entries})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s (%d entries)\n", created.Name, len(created.Entries))
	return nil
}

func newVarsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "Delete a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := a.store.Variables()
			v, err := vars.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := vars.Delete(cmd.Context(), v.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "removed %s\n", v.Name)
			return nil
		},
	}
}
