package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-varsub/pkg/store"
	"github.com/goliatone/go-varsub/pkg/template"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tmpl"},
		Short:   "Manage stored templates",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored templates and the placeholders they use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tmpls, err := a.store.Templates().List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tPLACEHOLDERS\tDESCRIPTION")
				for _, t := range tmpls {
					names := "-"
					if parsed, err := template.Parse(t.Body); err == nil && len(parsed.Names()) > 0 {
						names = fmt.Sprint(parsed.Names())
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, names, t.Description)
				}
				return w.Flush()
			},
		},
		newTemplatesAddCmd(a),
		&cobra.Command{
			Use:   "show NAME",
			Short: "Print a stored template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := a.store.Templates().GetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, t.Body)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Delete a stored template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tmpls := a.store.Templates()
				t, err := tmpls.GetByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := tmpls.Delete(cmd.Context(), t.ID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "removed %s\n", t.Name)
				return nil
			},
		},
	)
	return cmd
}

func newTemplatesAddCmd(a *app) *cobra.Command {
	var (
		description string
		inline      string
		replace     bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME [FILE]",
		Short: "Store a template from a file or --eval text",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			body := inline
			if len(args) == 2 {
				var err error
				if body, err = readLocation(ctx, args[1]); err != nil {
					return err
				}
			}
			if body == "" {
				return fmt.Errorf("a template file or --eval is required")
			}

			tmpls := a.store.Templates()
			next := store.Template{Name: args[0], Body: body, Description: description}
			if replace {
				if existing, err := tmpls.GetByName(ctx, args[0]); err == nil {
					next.ID = existing.ID
					if _, err := tmpls.Update(ctx, next); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "updated %s\n", next.Name)
					return nil
				}
			}
			if _, err := tmpls.Create(ctx, next); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "added %s\n", next.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "short description")
	cmd.Flags().StringVarP(&inline, "eval", "e", "", "template text")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing template with the same name")
	return cmd
}
