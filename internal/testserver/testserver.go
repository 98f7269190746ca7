// Package testserver runs a real GraphQL schema behind httptest so the
// executor, engine and CLI can be exercised against a live endpoint.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	graphqlgo "github.com/graphql-go/graphql"
)

// DefaultSDL is served by subgraph servers unless Options.SDL is set.
const DefaultSDL = `type Query {
  hello: String
  me: User
}

type User @key(fields: "id") {
  id: ID!
  name: String
}
`

// Options shape the behaviour of the server.
type Options struct {
	// RootName renames the query root type. Defaults to "Query".
	RootName string

	// Subgraph adds the federation _service { sdl } field.
	Subgraph bool
	// SDL overrides DefaultSDL for subgraph servers.
	SDL string
	// NullSDL makes _service.sdl resolve to null.
	NullSDL bool

	// DisableIntrospection rejects queries touching __schema or __type.
	DisableIntrospection bool
	// IntrospectionStatus is the HTTP status used when rejecting
	// introspection. Zero means 200 with a GraphQL error.
	IntrospectionStatus int

	// AuthName and AuthValue, when set, are required on every request.
	AuthName  string
	AuthValue string
	// UnauthorizedStatus is the status for requests missing the auth header.
	// Zero means 200 with a GraphQL error.
	UnauthorizedStatus int
	// UnauthorizedPlain answers unauthorized requests with a text body.
	UnauthorizedPlain bool
}

// Request is a recorded inbound request.
type Request struct {
	Query  string
	Header http.Header
}

// Server is a GraphQL endpoint backed by graphql-go.
type Server struct {
	*httptest.Server

	opts   Options
	schema graphqlgo.Schema

	mu       sync.Mutex
	requests []Request
}

// New starts a server. Callers must Close it.
func New(opts Options) *Server {
	if opts.RootName == "" {
		opts.RootName = "Query"
	}
	if opts.SDL == "" {
		opts.SDL = DefaultSDL
	}
	s := &Server{opts: opts, schema: buildSchema(opts)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func buildSchema(opts Options) graphqlgo.Schema {
	fields := graphqlgo.Fields{
		"hello": &graphqlgo.Field{
			Type: graphqlgo.String,
			Resolve: func(p graphqlgo.ResolveParams) (any, error) {
				return "world", nil
			},
		},
	}

	if opts.Subgraph {
		service := graphqlgo.NewObject(graphqlgo.ObjectConfig{
			Name: "_Service",
			Fields: graphqlgo.Fields{
				"sdl": &graphqlgo.Field{
					Type: graphqlgo.String,
					Resolve: func(p graphqlgo.ResolveParams) (any, error) {
						if opts.NullSDL {
							return nil, nil
						}
						return opts.SDL, nil
					},
				},
			},
		})
		fields["_service"] = &graphqlgo.Field{
			Type: graphqlgo.NewNonNull(service),
			Resolve: func(p graphqlgo.ResolveParams) (any, error) {
				return map[string]any{}, nil
			},
		}
	}

	schema, err := graphqlgo.NewSchema(graphqlgo.SchemaConfig{
		Query: graphqlgo.NewObject(graphqlgo.ObjectConfig{
			Name:   opts.RootName,
			Fields: fields,
		}),
	})
	if err != nil {
		panic("testserver: build schema: " + err.Error())
	}
	return schema
}

type postBody struct {
	Query string `json:"query"`
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrors(w, http.StatusMethodNotAllowed, "request must be a POST")
		return
	}

	var body postBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Query: body.Query, Header: r.Header.Clone()})
	s.mu.Unlock()

	if s.opts.AuthName != "" && r.Header.Get(s.opts.AuthName) != s.opts.AuthValue {
		switch {
		case s.opts.UnauthorizedPlain:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case s.opts.UnauthorizedStatus != 0:
			writeErrors(w, s.opts.UnauthorizedStatus, "unauthorized")
		default:
			writeErrors(w, http.StatusOK, "unauthorized")
		}
		return
	}

	if s.opts.DisableIntrospection && isIntrospection(body.Query) {
		status := s.opts.IntrospectionStatus
		if status == 0 {
			status = http.StatusOK
		}
		writeErrors(w, status, "GraphQL introspection is not allowed")
		return
	}

	result := graphqlgo.Do(graphqlgo.Params{
		Schema:        s.schema,
		RequestString: body.Query,
		Context:       r.Context(),
	})
	writeJSON(w, http.StatusOK, result)
}

func isIntrospection(query string) bool {
	return strings.Contains(query, "__schema") || strings.Contains(query, "__type(")
}

func writeErrors(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"errors": []map[string]any{{"message": msg}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
