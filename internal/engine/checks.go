package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/y0f/graphql-check/internal/checker"
	"github.com/y0f/graphql-check/internal/graphql"
)

// Check names, in run order.
const (
	CheckReachability  = "reachability"
	CheckSubgraph      = "subgraph"
	CheckIntrospection = "introspection"
	CheckAuth          = "auth"
)

// Probe queries.
const (
	TypenameQuery      = "{ __typename }"
	ServiceSDLQuery    = "{ _service { sdl } }"
	IntrospectionQuery = "{ __schema { types { name } } }"
)

// Check is one step of a run. The set of implementations is closed.
type Check interface {
	Name() string
	Run(ctx context.Context, env Env, st State) (Outcome, State)
	isCheck()
}

// DefaultChecks returns the checks in the order they must run.
func DefaultChecks() []Check {
	return []Check{Reachability{}, SubgraphDetection{}, Introspection{}, AuthEnforcement{}}
}

// Reachability queries __typename with the configured credentials. A
// transport failure halts the run.
type Reachability struct{}

func (Reachability) Name() string { return CheckReachability }
func (Reachability) isCheck()     {}

func (c Reachability) Run(ctx context.Context, env Env, st State) (Outcome, State) {
	res, err := env.Exec.Execute(ctx, TypenameQuery, env.Policy.Auth)
	if err != nil {
		env.logger().Debug("reachability probe failed", "error", err)
		st.Halt = true
		return fail(c.Name(), transportDetail(err)), st
	}

	switch {
	case res.StatusCode != http.StatusOK:
		detail := fmt.Sprintf("got status code: %d", res.StatusCode)
		if res.ErrorsPresent() {
			detail += " (" + res.ErrorSummary() + ")"
		}
		return fail(c.Name(), detail), st
	case res.ErrorsPresent():
		return fail(c.Name(), "received error from GraphQL server: "+res.ErrorSummary()), st
	}

	name, _ := res.String("__typename")
	if name == "" {
		return fail(c.Name(), "not GraphQL: response has no data.__typename"), st
	}

	st.Reachable = true
	return pass(c.Name(), fmt.Sprintf("endpoint answered with root type %s", name)), st
}

// SubgraphDetection always probes _service { sdl } so the authentication
// gate can act on it. Its own outcome only counts when the caller declared
// the endpoint a subgraph.
type SubgraphDetection struct{}

func (SubgraphDetection) Name() string { return CheckSubgraph }
func (SubgraphDetection) isCheck()     {}

func (c SubgraphDetection) Run(ctx context.Context, env Env, st State) (Outcome, State) {
	res, err := env.Exec.Execute(ctx, ServiceSDLQuery, env.Policy.Auth)

	st.SubgraphDetected = false
	st.SDLDefinitions = 0
	switch {
	case err != nil:
		env.logger().Debug("subgraph probe failed", "error", err)
	case res.ErrorsPresent():
		env.logger().Debug("subgraph probe returned errors", "errors", res.ErrorSummary())
	default:
		if sdl, ok := res.String("_service.sdl"); ok && sdl != "" {
			st.SubgraphDetected = true
			n, perr := graphql.CountSDLDefinitions(sdl)
			if perr != nil {
				env.logger().Debug("subgraph SDL did not parse", "error", perr)
			}
			st.SDLDefinitions = n
		}
	}

	if !env.Policy.DeclaredSubgraph {
		if st.SubgraphDetected {
			return skip(c.Name(), "subgraph not declared, but endpoint exposes subgraph SDL"), st
		}
		return skip(c.Name(), "subgraph not declared"), st
	}

	if !st.SubgraphDetected {
		return fail(c.Name(), "endpoint does not expose subgraph SDL"), st
	}
	return pass(c.Name(), sdlDetail(st.SDLDefinitions)), st
}

func sdlDetail(n int) string {
	if n == 0 {
		return "endpoint exposes subgraph SDL"
	}
	return fmt.Sprintf("endpoint exposes subgraph SDL with %d definitions", n)
}

// Introspection verifies anonymous callers cannot read the schema unless
// introspection is allowed. The probe never carries credentials.
type Introspection struct{}

func (Introspection) Name() string { return CheckIntrospection }
func (Introspection) isCheck()     {}

func (c Introspection) Run(ctx context.Context, env Env, st State) (Outcome, State) {
	if env.Policy.AllowIntrospection {
		return skip(c.Name(), "introspection allowed"), st
	}

	res, err := env.Exec.Execute(ctx, IntrospectionQuery, nil)
	if err != nil {
		var te *checker.TransportError
		if errors.As(err, &te) && te.ResponseReceived() && !isSuccess(te.StatusCode) {
			return pass(c.Name(), fmt.Sprintf("introspection rejected with status code %d", te.StatusCode)), st
		}
		return fail(c.Name(), "could not confirm introspection is disabled: "+err.Error()), st
	}

	if res.ErrorsPresent() {
		return pass(c.Name(), "introspection rejected: "+res.ErrorSummary()), st
	}

	schema, lerr := graphql.Lookup(res.Data, "__schema")
	if lerr == nil {
		if _, ok := schema.(map[string]any); ok {
			return fail(c.Name(), "introspection is enabled for the GraphQL server but not allowed"), st
		}
	}
	return pass(c.Name(), "introspection returned no schema"), st
}

// AuthEnforcement checks that credentials are actually required. Without a
// configured header it only guards against publicly exposed subgraphs.
type AuthEnforcement struct{}

func (AuthEnforcement) Name() string { return CheckAuth }
func (AuthEnforcement) isCheck()     {}

func (c AuthEnforcement) Run(ctx context.Context, env Env, st State) (Outcome, State) {
	if env.Policy.Auth == nil {
		switch {
		case st.SubgraphDetected && !env.Policy.InsecureSubgraph:
			return fail(c.Name(), "subgraph is publicly accessible without authentication"), st
		case st.SubgraphDetected:
			return skip(c.Name(), "subgraph is publicly accessible, allowed by insecure_subgraph"), st
		default:
			return skip(c.Name(), "no auth header configured"), st
		}
	}

	res, err := env.Exec.Execute(ctx, TypenameQuery, nil)
	if err != nil {
		env.logger().Debug("unauthenticated probe failed", "error", err)
		return pass(c.Name(), "unauthenticated request could not be completed"), st
	}

	name, _ := res.String("__typename")
	if res.StatusCode == http.StatusOK && !res.ErrorsPresent() && name != "" {
		return fail(c.Name(), "auth not enforced: able to make queries with no authentication header"), st
	}

	if res.StatusCode != http.StatusOK {
		return pass(c.Name(), fmt.Sprintf("unauthenticated request rejected with status code %d", res.StatusCode)), st
	}
	if res.ErrorsPresent() {
		return pass(c.Name(), "unauthenticated request rejected: "+res.ErrorSummary()), st
	}
	return pass(c.Name(), "unauthenticated request returned no data"), st
}

func transportDetail(err error) string {
	var te *checker.TransportError
	if errors.As(err, &te) {
		switch {
		case te.ResponseReceived():
			return fmt.Sprintf("got status code: %d without a GraphQL response", te.StatusCode)
		case te.Timeout():
			return "could not connect: timed out: " + err.Error()
		}
	}
	return "could not connect: " + err.Error()
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
