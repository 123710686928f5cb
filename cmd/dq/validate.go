package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/expectation"
	"github.com/nucleus/dq-core/internal/validator"
)

// batchFlags build a batch request from the command line.
type batchFlags struct {
	datasource   string
	connector    string
	asset        string
	readerMethod string
	header       bool
	index        string
	limit        int
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.datasource, "datasource", "", "datasource name")
	cmd.Flags().StringVar(&f.connector, "connector", "", "data connector name")
	cmd.Flags().StringVar(&f.asset, "asset", "", "data asset name")
	cmd.Flags().StringVar(&f.readerMethod, "reader-method", "", "reader method (csv, parquet, json)")
	cmd.Flags().BoolVar(&f.header, "header", false, "treat the first csv row as a header")
	cmd.Flags().StringVar(&f.index, "index", "", `batch index or slice, e.g. "-1" or "0:2"`)
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of batches")
	for _, name := range []string{"datasource", "connector", "asset"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *batchFlags) request(cmd *cobra.Command) (*batch.Request, error) {
	req := &batch.Request{
		DatasourceName:    f.datasource,
		DataConnectorName: f.connector,
		DataAssetName:     f.asset,
	}
	passthrough := map[string]any{}
	if f.readerMethod != "" {
		passthrough["reader_method"] = f.readerMethod
	}
	if cmd.Flags().Changed("header") {
		passthrough["reader_options"] = map[string]any{"header": f.header}
	}
	if len(passthrough) > 0 {
		req.BatchSpecPassthrough = passthrough
	}
	if f.index != "" || f.limit != 0 {
		query := &batch.DataConnectorQuery{Limit: f.limit}
		if f.index != "" {
			idx, err := batch.ParseIndex(f.index)
			if err != nil {
				return nil, err
			}
			query.Index = idx
		}
		req.DataConnectorQuery = query
	}
	return req, req.Validate()
}

func (a *app) validateCmd() *cobra.Command {
	var (
		flags        batchFlags
		suite        string
		resultFormat string
		runName      string
		onlyFailures bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a batch against an expectation suite and store the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				v, err := dc.GetValidator(cmd.Context(), req, suite)
				if err != nil {
					return err
				}
				res, err := v.Validate(cmd.Context(), validator.ValidateOptions{
					ResultFormat: expectation.ResultFormat(resultFormat),
					RunName:      runName,
					OnlyFailures: onlyFailures,
				})
				if err != nil {
					return err
				}
				key, err := dc.Validations().Put(cmd.Context(), res)
				if err != nil {
					return err
				}
				a.logger.Info("stored validation result", zap.String("key", key))
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
				if !res.Success {
					return errValidationFailed
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&suite, "suite", "", "expectation suite name")
	cmd.Flags().StringVar(&resultFormat, "result-format", "", "BOOLEAN_ONLY, BASIC, SUMMARY or COMPLETE")
	cmd.Flags().StringVar(&runName, "run-name", "", "run name (default a uuid)")
	cmd.Flags().BoolVar(&onlyFailures, "only-failures", false, "print failed expectations only")
	_ = cmd.MarkFlagRequired("suite")
	return cmd
}

func (a *app) headCmd() *cobra.Command {
	var (
		flags batchFlags
		rows  int
	)
	cmd := &cobra.Command{
		Use:   "head",
		Short: "Print the first rows of the last batch a request selects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				batches, err := dc.GetBatchList(cmd.Context(), req)
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					return errors.New("batch request matched no batches")
				}
				last := batches[len(batches)-1]
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows)\n", last.Definition.DataReference, last.Data.Count())
				fmt.Fprint(cmd.OutOrStdout(), last.Data.Format(rows))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&rows, "rows", "n", validator.DefaultHeadRows, "number of rows")
	return cmd
}

func (a *app) suiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Manage expectation suites",
	}
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty expectation suite, replacing any existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				a.warnIfEphemeral(dc)
				if _, err := dc.AddOrUpdateExpectationSuite(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created expectation suite %s\n", args[0])
				return nil
			})
		},
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List expectation suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				names, err := dc.ListExpectationSuiteNames(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(createCmd, listCmd)
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
