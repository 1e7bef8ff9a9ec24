package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/glimte/orderflow/messaging"
	"github.com/glimte/orderflow/orders"
	ebtransport "github.com/glimte/orderflow/transports/eventbridge"
	"github.com/spf13/cobra"
)

func newRulesCommand(flags *globalFlags) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the dispatch rules on EventBridge",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the default rules and their event patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRules(cmd, orders.DefaultRules())
		},
	}

	var targets, roles []string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or update the default rules and point them at their targets",
		Long: `Create or update the default rules on the EventBridge bus. Target ARNs come
from the "targets" map of the config file and --target flags, keyed by rule name.
Targets that EventBridge invokes through an IAM role, such as Step Functions
state machines, take the role from "target_roles" and --role flags.`,
		Example: `  orderctl rules sync --bus orders \
    --target new-order-consumer=arn:aws:lambda:eu-west-1:123456789012:function:new-order-consumer \
    --target new-order-wait-notifier=arn:aws:states:eu-west-1:123456789012:stateMachine:wait \
    --role new-order-wait-notifier=arn:aws:iam::123456789012:role/events-invoke-sfn`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			extra, err := parsePairs(targets)
			if err != nil {
				return err
			}

			extraRoles, err := parsePairs(roles)
			if err != nil {
				return err
			}
			arns := mergePairs(cfg.Targets, extra)
			roleArns := mergePairs(cfg.TargetRoles, extraRoles)

			awsCfg, err := cfg.AWS(cmd.Context())
			if err != nil {
				return err
			}
			manager := ebtransport.NewRuleManager(eventbridge.NewFromConfig(awsCfg), cfg.BusName,
				ebtransport.WithRuleManagerLogger(flags.logger()),
				ebtransport.WithTargetRoles(roleArns))

			if err := manager.Sync(cmd.Context(), orders.DefaultRules(), arns); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d rules on %s\n", len(orders.DefaultRules()), cfg.BusName)
			return nil
		},
	}
	syncCmd.Flags().StringArrayVar(&targets, "target", nil, "Target ARN as rule=arn")
	syncCmd.Flags().StringArrayVar(&roles, "role", nil, "Role ARN EventBridge assumes for a target, as rule=arn")

	deleteCmd := &cobra.Command{
		Use:   "delete [rule-names...]",
		Short: "Delete rules and their targets. Without names the default rules are deleted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				for _, r := range orders.DefaultRules() {
					names = append(names, r.Name)
				}
			}

			awsCfg, err := cfg.AWS(cmd.Context())
			if err != nil {
				return err
			}
			manager := ebtransport.NewRuleManager(eventbridge.NewFromConfig(awsCfg), cfg.BusName,
				ebtransport.WithRuleManagerLogger(flags.logger()))

			for _, name := range names {
				if err := manager.Delete(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return nil
		},
	}

	rulesCmd.AddCommand(listCmd, syncCmd, deleteCmd)
	return rulesCmd
}

func printRules(cmd *cobra.Command, rules []messaging.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEVENT PATTERN\tINPUT")
	for _, r := range rules {
		pattern, err := r.EventPattern()
		if err != nil {
			return err
		}
		input := r.InputPath
		if r.Input != nil {
			input = fmt.Sprintf("%v", r.Input)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, pattern, input)
	}
	return w.Flush()
}
