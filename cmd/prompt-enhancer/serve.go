package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prompt-enhancer/internal/auth"
	"github.com/fpang/prompt-enhancer/internal/cli"
	"github.com/fpang/prompt-enhancer/internal/enhance"
	"github.com/fpang/prompt-enhancer/internal/filehandler"
	"github.com/fpang/prompt-enhancer/internal/logging"
	"github.com/fpang/prompt-enhancer/internal/metrics"
	"github.com/fpang/prompt-enhancer/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		portFlag         int
		noFallbackFlag   bool
		validateKeysFlag bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		Long: `Serve starts a local web server with the prompt form, the result page,
the provider endpoints (/enhance/primary, /enhance/secondary), the orchestrated
endpoint (/api/enhance) and Prometheus metrics (/metrics).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initStart := time.Now()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = portFlag
			}
			if noFallbackFlag {
				cfg.FallbackEnabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			resolveKeys(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			prom := metrics.NewPromObserver()
			srv, err := server.New(ctx, cfg, server.Options{Observer: prom, MetricsHandler: prom.Handler()})
			if err != nil {
				return err
			}

			if validateKeysFlag {
				if err := validateKeys(ctx, srv.Primary, srv.Secondary); err != nil {
					return err
				}
			}

			logging.NewStartupLogger("prompt-enhancer").
				Version(version()).
				Provider("primary:"+srv.Primary.Vendor(), srv.Primary.Configured()).
				Provider("secondary:"+srv.Secondary.Vendor(), srv.Secondary.Configured()).
				Resource("resultStore", cfg.ResultStore).
				Feature("fallback", cfg.FallbackEnabled).
				Feature("prometheus", true).
				Config("port", strconv.Itoa(cfg.Port)).
				Config("maxImage", filehandler.FormatSize(cfg.MaxImageBytes)).
				InitDuration(time.Since(initStart)).
				Log()

			fmt.Fprintf(cmd.ErrOrStderr(), "\n  Prompt Enhancer: http://localhost:%d\n\n", cfg.Port)
			return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
		},
	}

	cmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on (overrides PORT)")
	cmd.Flags().BoolVar(&noFallbackFlag, "no-fallback", false, "Never fall back from the primary to the secondary provider by default")
	cmd.Flags().BoolVar(&validateKeysFlag, "validate-keys", false, "Probe each configured provider key before serving")
	return cmd
}

// configurable is a provider that knows whether it has a credential.
type configurable interface {
	enhance.Provider
	Configured() bool
}

// validateKeys probes every configured provider. Unconfigured providers are
// skipped with a warning.
func validateKeys(ctx context.Context, providers ...configurable) error {
	for _, p := range providers {
		if !p.Configured() {
			log.Warn().Str("vendor", p.Vendor()).Msg("API key not configured; skipping validation")
			continue
		}
		if err := auth.ValidateKey(ctx, p); err != nil {
			log.Error().Err(err).Msg(cli.ValidationMessage(p.Vendor(), err))
			return errReported
		}
	}
	return nil
}
