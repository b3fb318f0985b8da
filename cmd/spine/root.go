package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spine/internal/version"
)

// newRootCmd creates the root spine command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spine",
		Short:         "Append-only decision ledger for autonomous agents",
		Long:          "spine records the decisions an agent makes, tracks their execution,\nand reconciles them against real-world outcomes to score calibration.",
		Version:       fmt.Sprintf("spine %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newProposeCmd(),
		newActionCmd(),
		newOutcomeCmd(),
		newQueryCmd(),
		newCalibrationCmd(),
		newReconcileCmd(),
		newIndexCmd(),
		newTailCmd(),
	)

	return cmd
}
