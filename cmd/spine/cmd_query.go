package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"spine/pkg/event"
	"spine/pkg/ledgerindex"
	"spine/pkg/query"
	"spine/pkg/spine"
)

// queryConfig holds flag values for the query command.
type queryConfig struct {
	decision    string
	eventType   string
	calibration bool
	pnl         bool
	states      bool
}

// newQueryCmd creates "spine query": read-only inspection of the ledger.
// Every print path exits 0; an empty store is informational, not an error.
func newQueryCmd() *cobra.Command {
	var cfg queryConfig

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect the decision ledger",
		Long:  "Without flags, prints aggregate event counts and the distinct decision\ncount. Flags select a single decision, an event type, the calibration\ntable, the P&L summary, or derived lifecycle states.",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}
			store := spine.NewStore(appCfg.SpineDir)
			svc := query.NewService(store)

			// The index is a fast path only; queries work without it.
			if ix, err := ledgerindex.Open(appCfg.IndexPath, store); err == nil {
				defer ix.Close()
				svc.WithIndex(ix)
			}

			out := cmd.OutOrStdout()
			switch {
			case cfg.decision != "":
				events, err := svc.ByDecision(cmd.Context(), cfg.decision)
				if err != nil {
					return err
				}
				return printEvents(out, events)
			case cfg.eventType != "":
				t := event.Type(cfg.eventType)
				if !t.Valid() {
					return fmt.Errorf("unknown event type %q", cfg.eventType)
				}
				events, err := svc.ByType(t)
				if err != nil {
					return err
				}
				return printEvents(out, events)
			case cfg.calibration:
				rep, warnings, err := svc.Calibration(time.Now().UTC())
				if err != nil {
					return err
				}
				printWarnings(cmd.ErrOrStderr(), warnings)
				printCalibrationTable(out, rep)
				return nil
			case cfg.pnl:
				sum, err := svc.PnL()
				if err != nil {
					return err
				}
				printPnL(out, sum)
				return nil
			case cfg.states:
				return printStates(cmd, svc)
			default:
				return printCounts(cmd, svc)
			}
		},
	}

	cmd.Flags().StringVar(&cfg.decision, "decision", "", "print all events for one decision id")
	cmd.Flags().StringVar(&cfg.eventType, "type", "", "print all events of one type")
	cmd.Flags().BoolVar(&cfg.calibration, "calibration", false, "print the bucketed calibration table")
	cmd.Flags().BoolVar(&cfg.pnl, "pnl", false, "print the aggregate P&L summary")
	cmd.Flags().BoolVar(&cfg.states, "states", false, "print derived lifecycle states and anomalies")

	return cmd
}

// printEvents writes events as indented JSON, one document per event.
func printEvents(w io.Writer, events []event.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "no matching events")
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// printCounts prints per-type totals and the distinct decision count.
func printCounts(cmd *cobra.Command, svc *query.Service) error {
	counts, warnings, err := svc.Counts()
	if err != nil {
		return err
	}
	printWarnings(cmd.ErrOrStderr(), warnings)

	out := cmd.OutOrStdout()
	if counts.Total == 0 {
		fmt.Fprintln(out, "no events in spine yet")
		return nil
	}

	fmt.Fprintf(out, "Total events: %d\n", counts.Total)
	for _, t := range event.Types() {
		if n := counts.ByType[t]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", t, n)
		}
	}
	fmt.Fprintf(out, "\nUnique decisions: %d\n", counts.Decisions)
	return nil
}

// printStates prints one line per decision with its derived state and any
// anomaly flags. This is the operator's view of ValidationAnomaly.
func printStates(cmd *cobra.Command, svc *query.Service) error {
	ledger, warnings, err := svc.Lifecycle()
	if err != nil {
		return err
	}
	printWarnings(cmd.ErrOrStderr(), warnings)

	out := cmd.OutOrStdout()
	if ledger.Len() == 0 {
		fmt.Fprintln(out, "no events in spine yet")
		return nil
	}
	for _, d := range ledger.Decisions() {
		fmt.Fprintf(out, "%s  %-12s  %d events\n", d.ID, d.State, len(d.Events))
		for _, a := range d.Anomalies {
			fmt.Fprintf(out, "    anomaly: %s\n", a)
		}
	}
	return nil
}

// printPnL prints the aggregate win/loss/P&L summary.
func printPnL(w io.Writer, sum query.PnLSummary) {
	fmt.Fprintf(w, "Total P&L: %+.2f\n", sum.Total)
	fmt.Fprintf(w, "Wins: %d | Losses: %d\n", sum.Wins, sum.Losses)
	if sum.Wins+sum.Losses > 0 {
		fmt.Fprintf(w, "Win rate: %.1f%%\n", sum.WinRate()*100)
	}
}

// printWarnings surfaces malformed-record warnings without failing the query.
func printWarnings(w io.Writer, warnings []spine.MalformedRecordError) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %v\n", warn)
	}
}
