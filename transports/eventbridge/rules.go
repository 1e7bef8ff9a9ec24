package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/glimte/orderflow/messaging"
)

// ErrMissingTarget is returned when a rule has no target ARN to deliver to
var ErrMissingTarget = errors.New("rule has no target")

// RulesAPI is the subset of the EventBridge client the rule manager uses
type RulesAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	ListTargetsByRule(ctx context.Context, params *eventbridge.ListTargetsByRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// RuleManager registers dispatch rules on an EventBridge bus
type RuleManager struct {
	api     RulesAPI
	busName string
	roles   map[string]string
	logger  *slog.Logger
}

// RuleManagerOption configures the RuleManager
type RuleManagerOption func(*RuleManager)

// WithRuleManagerLogger sets the logger
func WithRuleManagerLogger(logger *slog.Logger) RuleManagerOption {
	return func(m *RuleManager) {
		m.logger = logger
	}
}

// WithTargetRoles sets the IAM role EventBridge assumes to invoke a rule's
// target, keyed by rule name. Targets such as Step Functions state machines
// need one; Lambda targets do not.
func WithTargetRoles(roles map[string]string) RuleManagerOption {
	return func(m *RuleManager) {
		m.roles = roles
	}
}

// NewRuleManager creates a rule manager for busName
func NewRuleManager(api RulesAPI, busName string, options ...RuleManagerOption) *RuleManager {
	m := &RuleManager{
		api:     api,
		busName: busName,
		logger:  slog.Default(),
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// TargetID is the id of the single target every managed rule carries
func TargetID(rule string) string {
	return rule + "-target"
}

// Sync creates or updates each rule and points it at the target ARN keyed
// by the rule's name. All rules are checked before anything is written.
func (m *RuleManager) Sync(ctx context.Context, rules []messaging.Rule, targets map[string]string) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
		if targets[rule.Name] == "" {
			return fmt.Errorf("%w: %s", ErrMissingTarget, rule.Name)
		}
	}

	for _, rule := range rules {
		if err := m.put(ctx, rule, targets[rule.Name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *RuleManager) put(ctx context.Context, rule messaging.Rule, targetArn string) error {
	pattern, err := rule.EventPattern()
	if err != nil {
		return err
	}

	m.logger.Info("putting event rule", "rule", rule.Name, "busName", m.busName, "eventPattern", pattern)
	output, err := m.api.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:         aws.String(rule.Name),
		EventBusName: aws.String(m.busName),
		EventPattern: aws.String(pattern),
		State:        ebtypes.RuleStateEnabled,
	})
	if err != nil {
		return fmt.Errorf("put rule %q failed: %w", rule.Name, err)
	}

	target, err := ruleTarget(rule, targetArn, m.roles[rule.Name])
	if err != nil {
		return err
	}

	out, err := m.api.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule:         aws.String(rule.Name),
		EventBusName: aws.String(m.busName),
		Targets:      []ebtypes.Target{target},
	})
	if err != nil {
		return fmt.Errorf("put targets for rule %q failed: %w", rule.Name, err)
	}
	if out.FailedEntryCount > 0 && len(out.FailedEntries) > 0 {
		failed := out.FailedEntries[0]
		return fmt.Errorf("put targets for rule %q failed: %s: %s",
			rule.Name, aws.ToString(failed.ErrorCode), aws.ToString(failed.ErrorMessage))
	}

	m.logger.Info("put event rule", "rule", rule.Name, "ruleArn", aws.ToString(output.RuleArn), "targetArn", targetArn)
	return nil
}

func ruleTarget(rule messaging.Rule, targetArn, roleArn string) (ebtypes.Target, error) {
	target := ebtypes.Target{
		Arn: aws.String(targetArn),
		Id:  aws.String(TargetID(rule.Name)),
	}
	if roleArn != "" {
		target.RoleArn = aws.String(roleArn)
	}

	switch {
	case rule.Input != nil:
		raw, err := json.Marshal(rule.Input)
		if err != nil {
			return target, fmt.Errorf("failed to marshal input for rule %q: %w", rule.Name, err)
		}
		target.Input = aws.String(string(raw))
	case rule.InputPath != "":
		target.InputPath = aws.String(rule.InputPath)
	}

	return target, nil
}

// Delete removes a rule and all of its targets
func (m *RuleManager) Delete(ctx context.Context, ruleName string) error {
	targets, err := m.api.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{
		Rule:         aws.String(ruleName),
		EventBusName: aws.String(m.busName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", ruleName, err)
	}

	var ids []string
	for _, target := range targets.Targets {
		ids = append(ids, aws.ToString(target.Id))
	}
	if len(ids) > 0 {
		_, err = m.api.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Ids:          ids,
			Rule:         aws.String(ruleName),
			EventBusName: aws.String(m.busName),
		})
		if err != nil {
			return fmt.Errorf("failed to delete rule %q: %w", ruleName, err)
		}
	}

	_, err = m.api.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name:         aws.String(ruleName),
		EventBusName: aws.String(m.busName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete rule %q: %w", ruleName, err)
	}

	m.logger.Info("deleted event rule", "rule", ruleName, "busName", m.busName)
	return nil
}
