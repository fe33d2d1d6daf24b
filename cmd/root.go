// Package cmd defines and implements the CLI commands for the storylint
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/storylint/internal/app"
	"github.com/JakeFAU/storylint/internal/config"
	"github.com/JakeFAU/storylint/internal/lint"
	"github.com/JakeFAU/storylint/internal/logging"
	"github.com/JakeFAU/storylint/internal/telemetry"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// App is what the commands need from the application. Tests swap in a fake
// through newApp.
type App interface {
	Lint(ctx context.Context, url string, headers http.Header) (*lint.Report, error)
	LintReader(ctx context.Context, baseURL string, r io.Reader, headers http.Header) (*lint.Report, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context)
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Enabled:     cfg.Telemetry.Tracing,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a, err := app.Build(cfg, logger, app.WithShutdown(tp.Shutdown))
	if err != nil {
		return nil, err
	}
	return a, nil
}

type appKeyType string

const appKey appKeyType = "app"

// errFailures marks a lint run whose report contains a FAIL. It is reported
// through the exit status only.
var errFailures = errors.New("lint reported failures")

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "storylint",
		Short:         "Lint AMP story pages.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `storylint fetches an AMP story and runs a suite of checks against it:
markup validity, canonical linkage, metadata, cross-origin endpoints, media
size and image geometry. It runs once from the command line or as an HTTP
service.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); STORYLINT_* environment variables override it")

	cmd.AddCommand(newLintCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errFailures) {
			fmt.Fprintln(os.Stderr, "storylint:", err)
		}
		os.Exit(1)
	}
}
