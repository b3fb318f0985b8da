package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spine/pkg/reconcile"
	"spine/pkg/spine"
)

// newReconcileCmd creates "spine reconcile": polls the market oracle for
// executed, unresolved trades and backfills OutcomeObserved events. With
// --interval it keeps running on a schedule until interrupted.
func newReconcileCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Backfill outcomes for executed trades from the oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}

			store := spine.NewStore(appCfg.SpineDir)
			oracle := reconcile.NewGammaClient(appCfg.Oracle.BaseURL, appCfg.Oracle.Timeout())
			worker := reconcile.NewWorker(store, oracle).
				WithOutput(cmd.OutOrStdout()).
				WithTimeout(appCfg.Oracle.Timeout())

			if interval > 0 {
				return worker.Run(cmd.Context(), interval)
			}

			result, err := worker.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"candidates=%d resolved=%d skipped=%d errors=%d\n",
				result.Candidates, len(result.Resolved), result.Skipped, result.Errors)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "run on a schedule (e.g. 15m); 0 means one pass")

	return cmd
}
