package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFromEnvelope(t *testing.T) {
	t.Run("serialises detail as JSON", func(t *testing.T) {
		env := &Envelope{
			Source:     SourceProducer,
			DetailType: DetailTypeNewOrder,
			Detail:     Detail{"customerId": "c1"},
			BusName:    "orders-bus",
		}

		entry, err := EntryFromEnvelope(env)

		require.NoError(t, err)
		assert.Equal(t, SourceProducer, entry.Source)
		assert.Equal(t, DetailTypeNewOrder, entry.DetailType)
		assert.Equal(t, "orders-bus", entry.EventBusName)
		assert.JSONEq(t, `{"customerId":"c1"}`, entry.Detail)
	})

	t.Run("carries a preset ID", func(t *testing.T) {
		entry, err := EntryFromEnvelope(&Envelope{ID: "evt-1", Source: "s", DetailType: "t"})

		require.NoError(t, err)
		assert.Equal(t, "evt-1", entry.ID)

		env, err := EnvelopeFromEntry("", entry)
		require.NoError(t, err)
		assert.Equal(t, "evt-1", env.ID)
	})

	t.Run("nil detail becomes empty object", func(t *testing.T) {
		entry, err := EntryFromEnvelope(&Envelope{Source: "s", DetailType: "t"})

		require.NoError(t, err)
		assert.Equal(t, "{}", entry.Detail)
	})

	t.Run("fails with nil envelope", func(t *testing.T) {
		_, err := EntryFromEnvelope(nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "envelope cannot be nil")
	})

	t.Run("fails with unserialisable detail", func(t *testing.T) {
		_, err := EntryFromEnvelope(&Envelope{
			Source:     "s",
			DetailType: "t",
			Detail:     Detail{"ch": make(chan int)},
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "s/t")
	})
}

func TestEnvelopeFromEntry(t *testing.T) {
	t.Run("decodes detail and keeps routing fields", func(t *testing.T) {
		now := time.Now().UTC()
		entry := PutEventsEntry{
			Source:       SourceProducer,
			DetailType:   DetailTypeUpdateOrder,
			Detail:       `{"orderId":"42","status":"Complete"}`,
			EventBusName: "orders-bus",
			Time:         now,
		}

		env, err := EnvelopeFromEntry("evt-1", entry)

		require.NoError(t, err)
		assert.Equal(t, "evt-1", env.ID)
		assert.Equal(t, "orders-bus", env.BusName)
		assert.Equal(t, "42", env.Detail["orderId"])
		assert.Equal(t, "Complete", env.Detail["status"])
		assert.Equal(t, now, env.Time)
	})

	t.Run("rejects malformed detail", func(t *testing.T) {
		_, err := EnvelopeFromEntry("evt-1", PutEventsEntry{Source: "s", DetailType: "t", Detail: "{"})

		assert.Error(t, err)
	})
}

func TestPublishResult(t *testing.T) {
	assert.False(t, PublishResult{EventID: "id"}.Failed())
	assert.True(t, PublishResult{ErrorCode: "InternalFailure"}.Failed())
}

func TestResponse(t *testing.T) {
	t.Run("NewResponse encodes body", func(t *testing.T) {
		resp := NewResponse(200, ResponseBody{
			Message:  "ok",
			Response: &PublishAck{Entries: []PublishResult{{EventID: "e1"}}},
		})

		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Headers["Content-Type"])

		body, err := resp.DecodeBody()
		require.NoError(t, err)
		assert.Equal(t, "ok", body.Message)
		require.NotNil(t, body.Response)
		assert.Equal(t, "e1", body.Response.Entries[0].EventID)
	})

	t.Run("omits empty acknowledgment", func(t *testing.T) {
		resp := NewResponse(500, ResponseBody{Message: "boom"})

		assert.JSONEq(t, `{"message":"boom"}`, resp.Body)
	})
}

func TestRequestAccessors(t *testing.T) {
	var empty Request
	assert.Empty(t, empty.PathParameter("orderId"))
	assert.Empty(t, empty.QueryParameter("customerId"))

	req := Request{
		PathParameters:        map[string]string{"orderId": "o1"},
		QueryStringParameters: map[string]string{"customerId": "c1"},
	}
	assert.Equal(t, "o1", req.PathParameter("orderId"))
	assert.Equal(t, "c1", req.QueryParameter("customerId"))

	assert.Empty(t, empty.Header("Idempotency-Key"))
	req.Headers = map[string]string{"idempotency-key": "k1"}
	assert.Equal(t, "k1", req.Header("Idempotency-Key"))
}
