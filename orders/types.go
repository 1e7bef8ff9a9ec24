package orders

import "time"

// StatusComplete is the status an UpdateOrder event sets
const StatusComplete = "Complete"

// Order id bounds for generated orders, inclusive
const (
	MinOrderID = 100000
	MaxOrderID = 999999
)

// CreatedOrder is the detail of a CreatedOrder event
type CreatedOrder struct {
	CustomerID string `json:"customerId"`
	OrderID    int    `json:"orderId"`
}

// Item is one line of an order
type Item struct {
	SKU       string  `json:"sku,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Count     int     `json:"count"`
}

// MyEvent is the order event described by the registry's OpenAPI document
type MyEvent struct {
	CustomerID     string     `json:"customerId,omitempty"`
	Datetime       *time.Time `json:"datetime,omitempty"`
	MembershipType string     `json:"membershipType,omitempty"`
	Address        string     `json:"address,omitempty"`
	OrderItems     []Item     `json:"orderItems"`
}

// WaitRequest is the input of the wait notifier
type WaitRequest struct {
	WaitMilliseconds int64 `json:"waitMilliseconds"`
}

// WaitResult mirrors the state the wait workflow accumulates
type WaitResult struct {
	WaitMilliseconds int64   `json:"waitMilliseconds"`
	WaitSeconds      float64 `json:"waitSeconds"`
	Message          string  `json:"message"`
	MessageID        string  `json:"messageId,omitempty"`
}
