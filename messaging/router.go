package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/glimte/orderflow/contracts"
)

// IdempotencyKeyHeader names the request header whose value fixes the ID of
// the published event. Repeating a request with the same key republishes the
// same event ID on buses that honour caller-chosen IDs.
const IdempotencyKeyHeader = "Idempotency-Key"

// Route maps one method and resource template to an envelope
type Route struct {
	Name     string
	Method   string
	Resource string
	// Message is returned in the success body
	Message string
	// EchoRequest includes the inbound request in the success body
	EchoRequest bool
	// Build validates the request and constructs the envelope to publish
	Build func(req *contracts.Request) (*contracts.Envelope, error)
}

// Matches reports whether the route accepts the request's method and resource
func (r Route) Matches(req *contracts.Request) bool {
	return strings.EqualFold(r.Method, req.Method) && r.Resource == req.Resource
}

// Router turns inbound requests into published envelopes. The routing table
// is fixed at construction and evaluated in order; the first match wins.
type Router struct {
	publisher        Publisher
	routes           []Route
	logger           *slog.Logger
	metrics          MetricsCollector
	validationStatus int
}

// RouterOption configures the Router
type RouterOption func(*Router)

// WithRouterLogger sets the logger
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithRouterMetrics sets the metrics collector
func WithRouterMetrics(metrics MetricsCollector) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// WithValidationStatus sets the status code returned for validation errors.
// The default answers them like any other failure, with 500.
func WithValidationStatus(statusCode int) RouterOption {
	return func(r *Router) {
		r.validationStatus = statusCode
	}
}

// NewRouter creates a router over a fixed routing table
func NewRouter(publisher Publisher, routes []Route, options ...RouterOption) *Router {
	r := &Router{
		publisher:        publisher,
		routes:           append([]Route(nil), routes...),
		logger:           slog.Default(),
		metrics:          &NoOpMetricsCollector{},
		validationStatus: http.StatusInternalServerError,
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Routes returns a copy of the routing table
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Handle routes a request, publishes at most one envelope and answers with a
// uniform response. It never returns an error and never panics.
func (r *Router) Handle(ctx context.Context, req *contracts.Request) (resp contracts.Response) {
	start := time.Now()
	routeName := "unroutable"

	defer func() {
		if p := recover(); p != nil {
			resp = r.failure(req, fmt.Errorf("panic: %v", p))
		}
		r.metrics.RecordRoute(routeName, resp.StatusCode, time.Since(start))
	}()

	if req == nil {
		return r.failure(req, fmt.Errorf("request cannot be nil"))
	}

	route, ok := r.match(req)
	if !ok {
		return r.failure(req, &contracts.UnroutableRequestError{Method: req.Method, Resource: req.Resource})
	}
	routeName = route.Name

	env, err := route.Build(req)
	if err != nil {
		return r.failure(req, err)
	}
	if key := req.Header(IdempotencyKeyHeader); key != "" && env.ID == "" {
		WithIdempotencyKey(key)(env)
	}

	ack, err := r.publisher.Publish(ctx, env)
	if err != nil {
		return r.failure(req, err)
	}

	r.logger.Info("request routed",
		"route", route.Name,
		"eventId", env.ID,
		"source", env.Source,
		"detailType", env.DetailType,
	)

	body := contracts.ResponseBody{
		Message:  route.Message,
		Response: ack,
	}
	if route.EchoRequest {
		body.Event = req
	}
	return contracts.NewResponse(http.StatusOK, body)
}

func (r *Router) match(req *contracts.Request) (Route, bool) {
	for _, route := range r.routes {
		if route.Matches(req) {
			return route, true
		}
	}
	return Route{}, false
}

func (r *Router) failure(req *contracts.Request, err error) contracts.Response {
	status := http.StatusInternalServerError
	if errors.Is(err, contracts.ErrValidation) {
		status = r.validationStatus
	}

	attrs := []any{"error", err, "statusCode", status}
	if req != nil {
		attrs = append(attrs, "method", req.Method, "resource", req.Resource)
	}
	r.logger.Error("request failed", attrs...)

	return ErrorResponse(status, err)
}

// ErrorResponse builds the uniform failure response for err
func ErrorResponse(statusCode int, err error) contracts.Response {
	return contracts.NewResponse(statusCode, contracts.ResponseBody{
		Message: fmt.Sprintf("some error happened - %v", err),
	})
}
