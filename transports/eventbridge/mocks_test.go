package eventbridge

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/stretchr/testify/mock"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func (m *mockEventBridge) PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutRuleOutput)
	return out, args.Error(1)
}

func (m *mockEventBridge) PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutTargetsOutput)
	return out, args.Error(1)
}

func (m *mockEventBridge) ListTargetsByRule(ctx context.Context, params *eventbridge.ListTargetsByRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.ListTargetsByRuleOutput)
	return out, args.Error(1)
}

func (m *mockEventBridge) RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.RemoveTargetsOutput)
	return out, args.Error(1)
}

func (m *mockEventBridge) DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.DeleteRuleOutput)
	return out, args.Error(1)
}
