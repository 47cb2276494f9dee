package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-tplguard/pkg/compiler"
)

func (a *app) newCheckCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <manifest>",
		Short: "Report every template in a manifest that would not compile",
		Long: `Check registers the manifest's components and analyses its templates
without keeping them. Every unauthorized variable of every template is
reported, not only the first. The command fails when any template would be
rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, m, err := a.runtime(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			findings, err := o.Check(cmd.Context(), m.Templates)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(findings); err != nil {
					return err
				}
			} else if err := writeFindings(cmd, findings); err != nil {
				return err
			}

			failed := 0
			for _, f := range findings {
				if !f.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d templates failed checks", failed, len(findings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func writeFindings(cmd *cobra.Command, findings []compiler.Finding) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMPLATE\tSTATUS\tDETAIL")
	for _, f := range findings {
		switch {
		case f.Error != nil:
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Error.Kind, f.Error.Message)
		case len(f.Unauthorized) > 0:
			fmt.Fprintf(w, "%s\t%s\tunauthorized: %s\n", f.Name, "SchemaValidationError", strings.Join(f.Unauthorized, ", "))
		default:
			fmt.Fprintf(w, "%s\tok\t%d variables\n", f.Name, len(f.Variables))
		}
	}
	return w.Flush()
}
