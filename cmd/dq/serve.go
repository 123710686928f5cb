package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/api"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/metrics"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			reg := prometheus.NewRegistry()
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}
			a.metrics = m

			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				a.logger.Info("serving data context",
					zap.String("root", a.root),
					zap.Bool("ephemeral", dc.IsEphemeral()),
					zap.Strings("datasources", dc.DatasourceNames()))
				srv := api.NewServer(dc, api.WithLogger(a.logger), api.WithGatherer(reg))
				return srv.ListenAndServe(cmd.Context(), addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $DQ_HTTP_ADDR or :8080)")
	return cmd
}
