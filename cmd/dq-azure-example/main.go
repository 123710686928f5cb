// Command dq-azure-example registers the public taxi sample container as a
// datasource, loads one month through the inferred Azure connector and checks
// the outcome. AZURE_ACCESS_KEY supplies the account credential.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/config"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/walkthrough"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("walkthrough failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dc, err := datacontext.Get(ctx,
		datacontext.WithLogger(logger),
		datacontext.WithRateLimit(cfg.BlobRateLimit, cfg.BlobRateBurst))
	if err != nil {
		return err
	}
	defer dc.Close()

	report, err := walkthrough.Run(ctx, dc, walkthrough.Options{
		Credential: cfg.AzureAccessKey,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	if err := walkthrough.Check(report, walkthrough.DefaultExpectations()); err != nil {
		return err
	}

	fmt.Print(report.Head.Format(walkthrough.DefaultHeadRows))
	logger.Info("walkthrough passed",
		zap.Strings("datasources", report.DatasourceNames),
		zap.Strings("data_asset_names", report.DataAssetNames),
		zap.Int("batches", report.BatchCount),
		zap.Int("rows", report.RowCount))
	return nil
}
