// Package graphql holds the GraphQL-over-HTTP shapes exchanged with the
// endpoint under test: the POST body, the response envelope and the
// per-exchange QueryResult the checks inspect.
package graphql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is the JSON body of a GraphQL POST.
type Request struct {
	Query string `json:"query"`
}

// Error is a single entry of the response "errors" list.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Response is the standard GraphQL response envelope.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []Error        `json:"errors"`
}

var errNotObject = errors.New("response body is not a JSON object")

// DecodeResponse parses body as a GraphQL response envelope. Bodies that are
// not a JSON object are rejected; an object with neither data nor errors is
// returned as an empty Response.
func DecodeResponse(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var resp Response
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// QueryResult is the outcome of one HTTP exchange that produced a parseable
// response, whatever its status code.
type QueryResult struct {
	StatusCode int
	Errors     []Error
	Data       map[string]any
	Duration   time.Duration
}

// ErrorsPresent reports whether the response carried a non-empty errors list.
func (r *QueryResult) ErrorsPresent() bool {
	return len(r.Errors) > 0
}

// ErrorSummary joins the messages of all GraphQL errors.
func (r *QueryResult) ErrorSummary() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			msg = "(no message)"
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// String returns the value at path in Data when it is a string.
func (r *QueryResult) String(path string) (string, bool) {
	v, err := Lookup(r.Data, path)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
