package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spine/pkg/query"
	"spine/pkg/report"
	"spine/pkg/spine"
)

// newCalibrationCmd creates "spine calibration": the full calibration eval
// with machine-readable and note-writing outputs.
func newCalibrationCmd() *cobra.Command {
	var (
		asJSON    bool
		writeNote bool
	)

	cmd := &cobra.Command{
		Use:   "calibration",
		Short: "Score stated confidence against observed outcomes",
		Long:  "Pairs DecisionProposed confidences with OutcomeObserved verdicts,\nbuckets them by decile, and reports win rate, delta, P&L and the\noverall Brier score.",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}

			svc := query.NewService(spine.NewStore(appCfg.SpineDir))
			rep, warnings, err := svc.Calibration(time.Now().UTC())
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), warnings)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			printCalibrationTable(out, rep)

			if writeNote {
				sink := report.NewMarkdownSink(appCfg.NotesDir)
				path, err := sink.Write(rep)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nWritten to %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	cmd.Flags().BoolVar(&writeNote, "note", false, "write the daily Markdown note")

	return cmd
}
