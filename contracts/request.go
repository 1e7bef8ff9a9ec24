package contracts

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Request is an inbound HTTP-style request as seen by the router. Resource is
// the path template ("/orders/{orderId}"), Path the concrete path.
type Request struct {
	Method                string            `json:"httpMethod"`
	Resource              string            `json:"resource"`
	Path                  string            `json:"path,omitempty"`
	PathParameters        map[string]string `json:"pathParameters,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	Body                  string            `json:"body,omitempty"`
}

// PathParameter returns a path parameter or the empty string
func (r *Request) PathParameter(name string) string {
	if r.PathParameters == nil {
		return ""
	}
	return r.PathParameters[name]
}

// QueryParameter returns a query string parameter or the empty string
func (r *Request) QueryParameter(name string) string {
	if r.QueryStringParameters == nil {
		return ""
	}
	return r.QueryStringParameters[name]
}

// Header returns a header value, matching the name case-insensitively
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response is the uniform result returned to the caller
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// ResponseBody is the JSON document carried in Response.Body
type ResponseBody struct {
	Message  string      `json:"message"`
	Response *PublishAck `json:"response,omitempty"`
	Event    *Request    `json:"event,omitempty"`
}

// NewResponse marshals body into a response with the given status
func NewResponse(statusCode int, body ResponseBody) Response {
	raw, err := json.Marshal(body)
	if err != nil {
		// ResponseBody only holds strings, maps and slices
		raw = []byte(`{"message":"failed to encode response"}`)
		statusCode = http.StatusInternalServerError
	}
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}

// DecodeBody parses the response body
func (r Response) DecodeBody() (ResponseBody, error) {
	var body ResponseBody
	err := json.Unmarshal([]byte(r.Body), &body)
	return body, err
}
