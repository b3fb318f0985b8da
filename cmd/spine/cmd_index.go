package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spine/pkg/ledgerindex"
	"spine/pkg/spine"
)

// newIndexCmd creates "spine index": updates the decision offset index with
// ledger lines appended since the last run. The index is derived state; it
// can be deleted and rebuilt from the ledger at any time.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Update the decision offset index",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}

			store := spine.NewStore(appCfg.SpineDir)
			ix, err := ledgerindex.Open(appCfg.IndexPath, store)
			if err != nil {
				return err
			}
			defer ix.Close()

			added, err := ix.Update(cmd.Context())
			if err != nil {
				return err
			}
			lines, bytesIndexed, err := ix.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "indexed %d new events\n", added)
			fmt.Fprintf(out, "total: %d events, %d bytes\n", lines, bytesIndexed)
			return nil
		},
	}
}
