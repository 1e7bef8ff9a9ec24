package messaging

import (
	"context"
	"encoding/json"

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

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) Handle(ctx context.Context, input json.RawMessage) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(source, detailType string, detail contracts.Detail) error {
	args := m.Called(source, detailType, detail)
	return args.Error(0)
}

func ackWithID(id string) *contracts.PublishAck {
	return &contracts.PublishAck{Entries: []contracts.PublishResult{{EventID: id}}}
}
