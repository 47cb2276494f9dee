package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-tplguard/internal/logging"
	"github.com/goliatone/go-tplguard/pkg/compiler"
	"github.com/goliatone/go-tplguard/pkg/jsonschema"
	"github.com/goliatone/go-tplguard/pkg/manifest"
	"github.com/goliatone/go-tplguard/pkg/orchestrator"
	"github.com/goliatone/go-tplguard/pkg/prompt"
	"github.com/goliatone/go-tplguard/pkg/render"
)

// BuildInfo is injected by main via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type app struct {
	v      *viper.Viper
	build  BuildInfo
	logger *slog.Logger
	// driver answers interactive prompts; nil uses the terminal.
	driver prompt.Driver
}

// NewRootCommand builds the tplguard command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	return newRootCommand(&app{v: newViper(), build: build, logger: logging.Discard()})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tplguard",
		Short: "Compile templates that may only read what their components expose",
		Long: `tplguard registers component schemas, compiles templates against the
components they declare, and rejects any template that reads a variable none
of those components expose.`,
		Version:       a.build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			if err := loadConfig(a.v); err != nil {
				return err
			}
			format := logging.FormatText
			if a.v.GetString(keyLogFormat) == string(logging.FormatJSON) {
				format = logging.FormatJSON
			}
			a.logger = logging.New(cmd.ErrOrStderr(), format, "tplguard", a.build.Version, a.v.GetString(keyLogLevel))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "config file (yaml, json, or toml)")
	flags.String(keyLogLevel, "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
	flags.String(keyLogFormat, "text", "log format: text or json")
	flags.String(keyPolicy, "", "batch policy: atomic, fail-fast, best-effort (default from manifest)")
	flags.String(keyDialect, "", "component schema dialect: draft2020-12, openapi3, none (default from manifest)")
	flags.String(keyStrict, "", "strict rendering: true or false (default from manifest)")

	root.AddCommand(
		a.newCheckCommand(),
		a.newVarsCommand(),
		a.newRenderCommand(),
		a.newServeCommand(),
		a.newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with build info injected via ldflags.
func Execute(ctx context.Context, build BuildInfo) error {
	return NewRootCommand(build).ExecuteContext(ctx)
}

// options turns flag, environment, and config overrides into orchestrator
// options applied after the manifest's own.
func (a *app) options() ([]orchestrator.Option, error) {
	options := []orchestrator.Option{orchestrator.WithLogger(a.logger)}

	if value := a.v.GetString(keyPolicy); value != "" {
		policy, err := compiler.ParsePolicy(value)
		if err != nil {
			return nil, err
		}
		options = append(options, orchestrator.WithPolicy(policy))
	}
	if value := a.v.GetString(keyDialect); value != "" {
		dialect, err := jsonschema.ParseDialect(value)
		if err != nil {
			return nil, err
		}
		options = append(options, orchestrator.WithDialect(dialect))
	}
	if a.v.GetString(keyStrict) != "" {
		options = append(options, orchestrator.WithStrict(a.v.GetBool(keyStrict)))
	}

	switch value := a.v.GetString(keySanitize); value {
	case "", "none":
	case "ugc":
		options = append(options, orchestrator.WithSanitizer(render.UGCSanitizer()))
	case "strict":
		options = append(options, orchestrator.WithSanitizer(render.StrictSanitizer()))
	default:
		return nil, fmt.Errorf("unknown sanitizer %q (want none, ugc, or strict)", value)
	}
	return options, nil
}

// runtime builds an orchestrator for the manifest at path without compiling
// its templates. extra options apply last.
func (a *app) runtime(ctx context.Context, path string, extra ...orchestrator.Option) (*orchestrator.Orchestrator, *manifest.Manifest, error) {
	m, err := manifest.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	manifestOptions, err := orchestrator.ManifestOptions(m)
	if err != nil {
		return nil, nil, err
	}
	overrides, err := a.options()
	if err != nil {
		return nil, nil, err
	}

	options := append(manifestOptions, overrides...)
	o := orchestrator.New(append(options, extra...)...)
	if err := o.RegisterComponents(ctx, m); err != nil {
		return nil, nil, err
	}
	return o, m, nil
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tplguard %s (commit %s, built %s)\n",
				a.build.Version, a.build.Commit, a.build.Date)
			return err
		},
	}
}
