package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-tplguard/pkg/orchestrator"
	"github.com/goliatone/go-tplguard/pkg/resolver"
	"github.com/goliatone/go-tplguard/pkg/schema"
)

func (a *app) newVarsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vars <manifest> <template>",
		Short: "List the variables a template and its includes read and the components exposing them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, m, err := a.runtime(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, ok := m.Template(args[1]); !ok {
				return fmt.Errorf("template %q is not in %s", args[1], m.Location)
			}

			findings, err := o.Check(cmd.Context(), m.Templates)
			if err != nil {
				return err
			}
			for _, f := range findings {
				if f.Name != args[1] {
					continue
				}
				if f.Error != nil {
					return f.Error
				}
				return writeVariables(cmd, o, f.Reads, f.Components)
			}
			return fmt.Errorf("template %q was not analysed", args[1])
		},
	}
}

func writeVariables(cmd *cobra.Command, o *orchestrator.Orchestrator, variables, components []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VARIABLE\tCOMPONENTS")
	for _, variable := range variables {
		var exposing []string
		segments := strings.Split(variable, ".")
		for _, name := range components {
			component, ok := o.Component(name)
			if ok && resolver.IsAuthorized(segments, []*schema.Node{component.Node}) {
				exposing = append(exposing, name)
			}
		}
		detail := strings.Join(exposing, ", ")
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", variable, detail)
	}
	return w.Flush()
}
