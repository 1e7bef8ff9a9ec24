package orders

import (
	"net/http"

	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// Resource templates served by the producer
const (
	ResourceOrders = "/orders"
	ResourceOrder  = "/orders/{orderId}"
)

// Routes returns the producer routing table for busName, in priority order
func Routes(busName string) []messaging.Route {
	factory := messaging.NewEnvelopeFactory(busName)

	return []messaging.Route{
		{
			Name:     "update-order",
			Method:   http.MethodPut,
			Resource: ResourceOrder,
			Message:  "Requested to update order",
			Build: func(req *contracts.Request) (*contracts.Envelope, error) {
				orderID := req.PathParameter("orderId")
				if orderID == "" {
					return nil, contracts.NewRequiredError("orderId")
				}
				return factory.NewEnvelope(contracts.SourceProducer, contracts.DetailTypeUpdateOrder, contracts.Detail{
					"orderId": orderID,
					"status":  StatusComplete,
				}), nil
			},
		},
		{
			Name:        "new-order",
			Method:      http.MethodPost,
			Resource:    ResourceOrders,
			Message:     "Requested to create new order",
			EchoRequest: true,
			Build: func(req *contracts.Request) (*contracts.Envelope, error) {
				customerID := req.QueryParameter("customerId")
				if customerID == "" {
					return nil, contracts.NewRequiredError("customerId")
				}
				return factory.NewEnvelope(contracts.SourceProducer, contracts.DetailTypeNewOrder, contracts.Detail{
					"customerId": customerID,
				}), nil
			},
		},
	}
}
