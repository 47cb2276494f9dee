package cli

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-tplguard/pkg/orchestrator"
	"github.com/goliatone/go-tplguard/pkg/server"
)

func (a *app) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry, compiler, and renderer over HTTP",
		Long: `Serve exposes component registration, template compilation, and
rendering over HTTP. With --manifest the manifest's components and templates
are loaded before the server reports ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			observers := []orchestrator.Option{
				orchestrator.WithCompileObserver(server.ObserveCompile),
				orchestrator.WithRenderObserver(server.ObserveRender),
			}

			var o *orchestrator.Orchestrator
			if path := a.v.GetString(keyManifest); path != "" {
				runtime, m, err := a.runtime(ctx, path, observers...)
				if err != nil {
					return err
				}
				if err := runtime.Compile(ctx, m.Templates); err != nil {
					return err
				}
				o = runtime
			} else {
				options, err := a.options()
				if err != nil {
					return err
				}
				o = orchestrator.New(append(options, observers...)...)
			}

			cfg := server.NewConfig()
			cfg.Version = a.build.Version
			cfg.Address = a.v.GetString(keyAddress)
			if port := a.v.GetInt(keyPort); port != 0 {
				cfg.Port = port
			}
			return server.Run(ctx, o, server.WithConfig(cfg), server.WithLogger(a.logger))
		},
	}

	flags := cmd.Flags()
	flags.String(keyManifest, "", "manifest to load before serving")
	flags.String(keyAddress, "", "listen address")
	flags.Int(keyPort, 0, "listen port (default from PORT, else 8080)")
	flags.String(keySanitize, "none", "output sanitizer: none, ugc, or strict")
	return cmd
}
