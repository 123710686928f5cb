package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

func (a *app) datasourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasource",
		Short: "Test, add, list and delete datasources",
	}

	testCmd := &cobra.Command{
		Use:   "test <file|->",
		Short: "Validate a datasource document and print its self check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				report, err := dc.TestYAMLConfig(cmd.Context(), doc)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}

	var update bool
	addCmd := &cobra.Command{
		Use:   "add <file|->",
		Short: "Register a datasource document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			cfg, err := yamlconfig.ParseDatasource(doc)
			if err != nil {
				return err
			}
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				a.warnIfEphemeral(dc)
				add := dc.AddDatasource
				if update {
					add = dc.AddOrUpdateDatasource
				}
				if _, err := add(cmd.Context(), cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added datasource %s\n", cfg.Name)
				return nil
			})
		},
	}
	addCmd.Flags().BoolVar(&update, "update", false, "replace a datasource with the same name")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered datasources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tENGINE\tDATA CONNECTORS")
				for _, cfg := range dc.ListDatasources() {
					engine := ""
					if cfg.ExecutionEngine != nil {
						engine = cfg.ExecutionEngine.ClassName
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", cfg.Name, engine, len(cfg.DataConnectors))
				}
				return w.Flush()
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a registered datasource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				if err := dc.DeleteDatasource(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted datasource %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(testCmd, addCmd, listCmd, deleteCmd)
	return cmd
}

func (a *app) assetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect data assets",
	}
	var datasources []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List data assets per datasource and data connector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				assets, err := dc.GetAvailableDataAssetNames(cmd.Context(), datasources...)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DATASOURCE\tDATA CONNECTOR\tDATA ASSET")
				for _, ds := range sortedKeys(assets) {
					for _, conn := range sortedKeys(assets[ds]) {
						for _, asset := range assets[ds][conn] {
							fmt.Fprintf(w, "%s\t%s\t%s\n", ds, conn, asset)
						}
					}
				}
				return w.Flush()
			})
		},
	}
	listCmd.Flags().StringSliceVar(&datasources, "datasource", nil, "limit to these datasources")
	cmd.AddCommand(listCmd)
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
