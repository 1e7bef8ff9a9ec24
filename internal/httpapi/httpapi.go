// Package httpapi adapts API Gateway events and net/http requests to the
// router's request and response types.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/glimte/orderflow/contracts"
	"github.com/glimte/orderflow/messaging"
)

// maxBodyBytes bounds the request body copied into contracts.Request
const maxBodyBytes = 1 << 20

// RequestHandler answers a routed request
type RequestHandler interface {
	Handle(ctx context.Context, req *contracts.Request) contracts.Response
}

// FromAPIGateway converts a proxy integration event
func FromAPIGateway(event events.APIGatewayProxyRequest) *contracts.Request {
	return &contracts.Request{
		Method:                event.HTTPMethod,
		Resource:              event.Resource,
		Path:                  event.Path,
		PathParameters:        event.PathParameters,
		QueryStringParameters: event.QueryStringParameters,
		Headers:               event.Headers,
		Body:                  event.Body,
	}
}

// ToAPIGateway converts a response into a proxy integration result
func ToAPIGateway(resp contracts.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// LambdaHandler returns an API Gateway proxy handler over h
func LambdaHandler(h RequestHandler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return ToAPIGateway(h.Handle(ctx, FromAPIGateway(event))), nil
	}
}

// Server serves the router's routes over net/http
type Server struct {
	handler RequestHandler
	logger  *slog.Logger
	mux     *http.ServeMux
}

// ServerOption configures the Server
type ServerOption func(*Server)

// WithServerLogger sets the logger
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer registers one pattern per route. Requests no route matches still
// reach the handler, which answers them as unroutable.
func NewServer(handler RequestHandler, routes []messaging.Route, options ...ServerOption) *Server {
	s := &Server{
		handler: handler,
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}

	for _, opt := range options {
		opt(s)
	}

	for _, route := range routes {
		s.mux.Handle(strings.ToUpper(route.Method)+" "+route.Resource, s.serve(route.Resource))
	}
	s.mux.Handle("/", s.serve(""))

	return s
}

// Handle mounts an extra handler, e.g. metrics or health endpoints
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) serve(resource string) http.Handler {
	params := pathParameters(resource)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &contracts.Request{
			Method:   r.Method,
			Resource: resource,
			Path:     r.URL.Path,
			Headers:  make(map[string]string, len(r.Header)),
		}
		if resource == "" {
			req.Resource = r.URL.Path
		}

		for _, name := range params {
			if req.PathParameters == nil {
				req.PathParameters = make(map[string]string, len(params))
			}
			req.PathParameters[name] = r.PathValue(name)
		}

		if query := r.URL.Query(); len(query) > 0 {
			req.QueryStringParameters = make(map[string]string, len(query))
			for k := range query {
				req.QueryStringParameters[k] = query.Get(k)
			}
		}

		for k := range r.Header {
			req.Headers[k] = r.Header.Get(k)
		}

		if r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				s.logger.Warn("failed to read request body", "path", r.URL.Path, "error", err)
			}
			req.Body = string(body)
		}

		resp := s.handler.Handle(r.Context(), req)

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.WriteString(w, resp.Body); err != nil {
			s.logger.Warn("failed to write response", "path", r.URL.Path, "error", err)
		}
	})
}

// pathParameters lists the {name} segments of a resource template
func pathParameters(resource string) []string {
	var names []string
	for _, segment := range strings.Split(resource, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}"))
		}
	}
	return names
}
