// Command dq manages a data-quality project: datasources, expectation
// suites, validations and checkpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/config"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/metrics"
)

// errValidationFailed makes the process exit non-zero without printing a
// second error line.
var errValidationFailed = errors.New("validation failed")

type app struct {
	verbose bool
	root    string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dq",
		Short:         "Data quality checks over blob storage and local files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.Load()
			if a.verbose {
				a.cfg.LogLevel = "debug"
			}
			if a.root == "" {
				a.root = a.cfg.ContextRoot
			}
			if a.root == "" {
				a.root = "."
			}
			logger, err := config.NewLogger(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.root, "root", "", "project directory holding dq.yml (default $DQ_CONTEXT_ROOT or .)")

	root.AddCommand(
		a.initCmd(),
		a.datasourceCmd(),
		a.assetsCmd(),
		a.suiteCmd(),
		a.validateCmd(),
		a.headCmd(),
		a.checkpointCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) openContext(ctx context.Context) (*datacontext.DataContext, error) {
	return datacontext.Get(ctx,
		datacontext.WithRoot(a.root),
		datacontext.WithLogger(a.logger),
		datacontext.WithMetrics(a.metrics),
		datacontext.WithRateLimit(a.cfg.BlobRateLimit, a.cfg.BlobRateBurst))
}

// withContext opens the data context for the duration of fn.
func (a *app) withContext(cmd *cobra.Command, fn func(dc *datacontext.DataContext) error) error {
	dc, err := a.openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer dc.Close()
	return fn(dc)
}

func (a *app) warnIfEphemeral(dc *datacontext.DataContext) {
	if dc.IsEphemeral() {
		a.logger.Warn("no dq.yml under root; changes will not be kept, run `dq init` first", zap.String("root", a.root))
	}
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create dq.yml under the project root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := datacontext.Init(cmd.Context(), a.root, datacontext.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer dc.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized project in %s\n", dc.Root())
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
