package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/dq-core/internal/datacontext"
)

func (a *app) checkpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage and run checkpoints",
	}

	addCmd := &cobra.Command{
		Use:   "add <file|->",
		Short: "Register a checkpoint document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var cp datacontext.Checkpoint
			if err := yaml.Unmarshal([]byte(doc), &cp); err != nil {
				return fmt.Errorf("parse checkpoint: %w", err)
			}
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				a.warnIfEphemeral(dc)
				if err := dc.AddCheckpoint(cmd.Context(), &cp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added checkpoint %s\n", cp.Name)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				for _, name := range dc.ListCheckpoints() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}

	var runName string
	runCmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a checkpoint and store its validation results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContext(cmd, func(dc *datacontext.DataContext) error {
				res, err := dc.RunCheckpoint(cmd.Context(), args[0], runName)
				if err != nil {
					return err
				}
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
	runCmd.Flags().StringVar(&runName, "run-name", "", "run name (default a uuid)")

	cmd.AddCommand(addCmd, listCmd, runCmd)
	return cmd
}
