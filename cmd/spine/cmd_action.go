package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spine/pkg/spine"
)

// newActionCmd creates the "spine action" command group: the tool gateway's
// writer surface for dispatch and execution events.
func newActionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Record action lifecycle events for a decision",
	}
	cmd.AddCommand(
		newActionDispatchedCmd(),
		newActionExecutedCmd(),
		newActionFailedCmd(),
	)
	return cmd
}

// newActionDispatchedCmd creates "spine action dispatched". Sensitive
// parameter keys (api_key, secret, private_key) are stripped before the
// event is persisted.
func newActionDispatchedCmd() *cobra.Command {
	var (
		tool   string
		params []string
		agent  string
	)

	cmd := &cobra.Command{
		Use:   "dispatched <decision-id>",
		Short: "Record an ActionDispatched event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			parsed, err := parseParams(params)
			if err != nil {
				return err
			}

			em := spine.NewEmitter(spine.NewStore(cfg.SpineDir))
			eventID, err := em.Dispatched(args[0], tool, parsed, agent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "tool the action was dispatched to")
	cmd.Flags().StringArrayVar(&params, "param", nil, "tool parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&agent, "agent", "", "dispatching agent identity")
	_ = cmd.MarkFlagRequired("tool")

	return cmd
}

// newActionExecutedCmd creates "spine action executed".
func newActionExecutedCmd() *cobra.Command {
	var (
		success   bool
		results   []string
		latencyMS int64
		agent     string
	)

	cmd := &cobra.Command{
		Use:   "executed <decision-id>",
		Short: "Record an ActionExecuted event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			parsed, err := parseParams(results)
			if err != nil {
				return err
			}

			em := spine.NewEmitter(spine.NewStore(cfg.SpineDir))
			eventID, err := em.Executed(args[0], success, parsed, latencyMS, agent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eventID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&success, "success", true, "whether the action succeeded")
	cmd.Flags().StringArrayVar(&results, "result", nil, "result field as key=value (repeatable)")
	cmd.Flags().Int64Var(&latencyMS, "latency-ms", 0, "execution latency in milliseconds")
	cmd.Flags().StringVar(&agent, "agent", "", "executing agent identity")

	return cmd
}

// newActionFailedCmd creates "spine action failed".
func newActionFailedCmd() *cobra.Command {
	var (
		errorType   string
		errorDetail string
		retryable   bool
		retryCount  int
		agent       string
	)

	cmd := &cobra.Command{
		Use:   "failed <decision-id>",
		Short: "Record an ActionFailed event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			em := spine.NewEmitter(spine.NewStore(cfg.SpineDir))
			eventID, err := em.Failed(args[0], errorType, errorDetail, retryable, retryCount, agent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eventID)
			return nil
		},
	}

	cmd.Flags().StringVar(&errorType, "error-type", "", "failure classification")
	cmd.Flags().StringVar(&errorDetail, "error-detail", "", "failure detail")
	cmd.Flags().BoolVar(&retryable, "retryable", false, "whether the action can be retried")
	cmd.Flags().IntVar(&retryCount, "retry-count", 0, "retries already attempted")
	cmd.Flags().StringVar(&agent, "agent", "", "reporting agent identity")
	_ = cmd.MarkFlagRequired("error-type")

	return cmd
}
