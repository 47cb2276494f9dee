package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-tplguard/pkg/codec"
	"github.com/goliatone/go-tplguard/pkg/orchestrator"
	"github.com/goliatone/go-tplguard/pkg/prompt"
)

func (a *app) newRenderCommand() *cobra.Command {
	var (
		contextPath string
		outputPath  string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "render <manifest> <template>",
		Short: "Compile a manifest and render one of its templates",
		Long: `Render compiles every template in the manifest, then renders the named
template. The context comes from --context (json, jsonc, yaml, or cbor by
extension; "-" reads json from stdin). With --interactive every variable the
template reads is prompted for, offering values from --context as defaults.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, m, err := a.runtime(ctx, args[0])
			if err != nil {
				return err
			}
			if err := o.Compile(ctx, m.Templates); err != nil {
				return err
			}

			data, err := readContext(cmd.InOrStdin(), contextPath)
			if err != nil {
				return err
			}
			if interactive {
				variables, schemas := transitiveInputs(o, args[1])
				collector := prompt.New(
					prompt.WithDriver(a.driver),
					prompt.WithDefaults(flatten(data, "")),
				)
				answers, err := collector.Collect(ctx, variables, schemas)
				if err != nil {
					return err
				}
				data = merge(data, answers)
			}

			out, err := o.RenderTemplate(ctx, args[1], data)
			if err != nil {
				return err
			}
			if outputPath != "" {
				return os.WriteFile(outputPath, []byte(out), 0o644)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&contextPath, "context", "", "context file, or - for json on stdin")
	flags.StringVarP(&outputPath, "output", "o", "", "write the result to a file instead of stdout")
	flags.BoolVarP(&interactive, "interactive", "i", false, "prompt for every variable the template reads")
	flags.String(keySanitize, "none", "output sanitizer: none, ugc, or strict")
	return cmd
}

func readContext(stdin io.Reader, path string) (map[string]any, error) {
	var (
		raw    []byte
		err    error
		format = codec.FormatJSON
	)
	switch path {
	case "":
		return map[string]any{}, nil
	case "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(path)
		format = codec.FormatFromPath(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading context: %w", err)
	}
	data, err := codec.DecodeObject(format, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding context %s: %w", path, err)
	}
	return data, nil
}

// transitiveInputs gathers the variables of name and of every template it
// pulls in, with the schema payloads of all components involved.
func transitiveInputs(o *orchestrator.Orchestrator, name string) ([]string, []map[string]any) {
	var (
		variables  []string
		schemas    []map[string]any
		components = map[string]bool{}
		visited    = map[string]bool{}
		queue      = []string{name}
	)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		info, ok := o.Template(current)
		if !ok {
			continue
		}
		variables = append(variables, info.Variables...)
		queue = append(queue, info.Dependencies...)
		for _, component := range info.Components {
			if components[component] {
				continue
			}
			components[component] = true
			if c, ok := o.Component(component); ok {
				schemas = append(schemas, c.Payload)
			}
		}
	}
	slices.Sort(variables)
	return slices.Compact(variables), schemas
}

// flatten turns nested maps into dotted keys.
func flatten(data map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for key, value := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(nested, path) {
				out[k] = v
			}
			continue
		}
		out[path] = value
	}
	return out
}

// merge copies src into dst recursively; src wins on conflicts.
func merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		nested, isMap := value.(map[string]any)
		existing, wasMap := dst[key].(map[string]any)
		if isMap && wasMap {
			dst[key] = merge(existing, nested)
			continue
		}
		dst[key] = value
	}
	return dst
}
