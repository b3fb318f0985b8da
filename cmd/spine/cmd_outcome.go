package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spine/pkg/spine"
)

// newOutcomeCmd creates "spine outcome": the manual write path for observed
// resolutions. hypothesis-correct and pnl stay absent unless the flags are
// set; absence excludes the decision from calibration pairing.
func newOutcomeCmd() *cobra.Command {
	var (
		resolution string
		correct    bool
		pnl        float64
		currency   string
		source     string
		agent      string
	)

	cmd := &cobra.Command{
		Use:   "outcome <decision-id>",
		Short: "Record an OutcomeObserved event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			obs := spine.Observation{
				Resolution:       resolution,
				PnLCurrency:      currency,
				ResolutionSource: source,
				Agent:            agent,
			}
			if cmd.Flags().Changed("hypothesis-correct") {
				obs.HypothesisCorrect = &correct
			}
			if cmd.Flags().Changed("pnl") {
				obs.PnL = &pnl
			}

			em := spine.NewEmitter(spine.NewStore(cfg.SpineDir))
			eventID, err := em.Outcome(args[0], obs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "what actually happened")
	cmd.Flags().BoolVar(&correct, "hypothesis-correct", false, "whether the hypothesis held")
	cmd.Flags().Float64Var(&pnl, "pnl", 0, "realized profit and loss")
	cmd.Flags().StringVar(&currency, "pnl-currency", "", "P&L currency (default USDC)")
	cmd.Flags().StringVar(&source, "source", "", "resolution source (default manual)")
	cmd.Flags().StringVar(&agent, "agent", "", "observing agent identity")
	_ = cmd.MarkFlagRequired("resolution")

	return cmd
}
