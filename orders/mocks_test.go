package orders

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/glimte/orderflow/contracts"
	"github.com/stretchr/testify/mock"
)

type mockBusPublisher struct {
	mock.Mock
}

func (m *mockBusPublisher) PutEvents(ctx context.Context, entries []contracts.PutEventsEntry) (*contracts.PublishAck, error) {
	args := m.Called(ctx, entries)
	ack, _ := args.Get(0).(*contracts.PublishAck)
	return ack, args.Error(1)
}

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func ackWithID(id string) *contracts.PublishAck {
	return &contracts.PublishAck{Entries: []contracts.PublishResult{{EventID: id}}}
}
