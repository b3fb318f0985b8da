package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"spine/pkg/spine"
)

// proposeConfig holds flag values for the propose command.
type proposeConfig struct {
	hypothesis   string
	confidence   float64
	action       string
	params       []string
	trigger      string
	inputs       []string
	alternatives []string
	preMortem    string
	noteRef      string
	agent        string
}

// newProposeCmd creates the "spine propose" subcommand.
func newProposeCmd() *cobra.Command {
	var cfg proposeConfig

	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Record a DecisionProposed event",
		Long:  "Opens a new decision: records the hypothesis, stated confidence and\nchosen action, and prints the fresh decision id.",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := resolveConfig()
			if err != nil {
				return err
			}

			params, err := parseParams(cfg.params)
			if err != nil {
				return err
			}

			agent := cfg.agent
			if agent == "" {
				agent = appCfg.Agent
			}

			em := spine.NewEmitter(spine.NewStore(appCfg.SpineDir))
			decisionID, err := em.Propose(spine.Proposal{
				Hypothesis:             cfg.hypothesis,
				Confidence:             cfg.confidence,
				ChosenAction:           cfg.action,
				Parameters:             params,
				Trigger:                cfg.trigger,
				Inputs:                 cfg.inputs,
				AlternativesConsidered: cfg.alternatives,
				PreMortem:              cfg.preMortem,
				CanonNoteRef:           cfg.noteRef,
				Agent:                  agent,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), decisionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.hypothesis, "hypothesis", "", "what the agent believes will happen")
	cmd.Flags().Float64Var(&cfg.confidence, "confidence", 0, "stated confidence in [0,1]")
	cmd.Flags().StringVar(&cfg.action, "action", "", "chosen action (e.g. place_trade)")
	cmd.Flags().StringArrayVar(&cfg.params, "param", nil, "action parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&cfg.trigger, "trigger", "", "what prompted the decision (default heartbeat)")
	cmd.Flags().StringArrayVar(&cfg.inputs, "input", nil, "evidence input (repeatable)")
	cmd.Flags().StringArrayVar(&cfg.alternatives, "alternative", nil, "alternative considered (repeatable)")
	cmd.Flags().StringVar(&cfg.preMortem, "pre-mortem", "", "how this could go wrong")
	cmd.Flags().StringVar(&cfg.noteRef, "note-ref", "", "reference to the thinking note")
	cmd.Flags().StringVar(&cfg.agent, "agent", "", "proposing agent identity")
	_ = cmd.MarkFlagRequired("hypothesis")
	_ = cmd.MarkFlagRequired("confidence")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

// parseParams turns key=value pairs into a parameter map. Values that parse
// as numbers or booleans keep their type so the ledger round-trips them the
// way in-process producers write them.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed --param %q, want key=value", pair)
		}
		params[key] = coerce(value)
	}
	return params, nil
}

// coerce converts a flag value to the narrowest JSON-compatible type.
func coerce(value string) any {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
