package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
	"github.com/glimte/orderflow/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	got *contracts.Request
}

func (h *recordingHandler) Handle(ctx context.Context, req *contracts.Request) contracts.Response {
	h.got = req
	return contracts.NewResponse(http.StatusOK, contracts.ResponseBody{Message: "ok"})
}

func TestServer(t *testing.T) {
	routes := orders.Routes("orders")

	t.Run("path parameters", func(t *testing.T) {
		h := &recordingHandler{}
		srv := NewServer(h, routes)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/orders/42", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, h.got)
		assert.Equal(t, "PUT", h.got.Method)
		assert.Equal(t, orders.ResourceOrder, h.got.Resource)
		assert.Equal(t, "42", h.got.PathParameter("orderId"))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("query parameters", func(t *testing.T) {
		h := &recordingHandler{}
		srv := NewServer(h, routes)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders?customerId=c1", nil))

		require.NotNil(t, h.got)
		assert.Equal(t, orders.ResourceOrders, h.got.Resource)
		assert.Equal(t, "c1", h.got.QueryParameter("customerId"))
	})

	t.Run("unmatched requests reach the handler", func(t *testing.T) {
		h := &recordingHandler{}
		srv := NewServer(h, routes)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders", nil))

		require.NotNil(t, h.got)
		assert.Equal(t, "DELETE", h.got.Method)
		assert.Equal(t, "/orders", h.got.Resource)
	})
}

func TestServer_WithRouter(t *testing.T) {
	bus := messaging.NewMemoryBus()
	router := messaging.NewRouter(messaging.NewEventPublisher(bus), orders.Routes("orders"))
	srv := NewServer(router, router.Routes())

	t.Run("unknown route answers 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body contracts.ResponseBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "some error happened - Unknown path and method", body.Message)
	})

	t.Run("update order publishes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/orders/7", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		published := bus.Published()
		require.Len(t, published, 1)
		assert.Equal(t, contracts.Detail{"orderId": "7", "status": "Complete"}, published[0].Detail)
	})
}

func TestLambdaHandler(t *testing.T) {
	h := &recordingHandler{}

	resp, err := LambdaHandler(h)(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            "POST",
		Resource:              "/orders",
		Path:                  "/orders",
		QueryStringParameters: map[string]string{"customerId": "c1"},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ok"}`, resp.Body)
	assert.Equal(t, "c1", h.got.QueryParameter("customerId"))
}
