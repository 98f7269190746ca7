// Package engine runs the ordered endpoint checks and folds their outcomes
// into a Verdict.
//
// Checks run strictly in sequence because later checks read State produced
// by earlier ones: the silent subgraph probe feeds the authentication gate
// even when the subgraph check itself is skipped.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/y0f/graphql-check/internal/graphql"
)

// Executor sends one GraphQL query. A nil header sends no credentials.
type Executor interface {
	Execute(ctx context.Context, query string, header *graphql.Header) (*graphql.QueryResult, error)
}

// Policy is the resolved configuration the checks evaluate against. Optional
// overrides are already folded into plain booleans.
type Policy struct {
	Endpoint           string
	Auth               *graphql.Header
	DeclaredSubgraph   bool
	AllowIntrospection bool
	InsecureSubgraph   bool
}

// State is threaded through the checks of one run.
type State struct {
	Reachable        bool
	SubgraphDetected bool
	SDLDefinitions   int
	// Halt stops the run after the current check.
	Halt bool
}

// Env is what a check may use besides State.
type Env struct {
	Exec   Executor
	Policy Policy
	Logger *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

type Engine struct {
	exec   Executor
	policy Policy
	logger *slog.Logger
	checks []Check
}

// New returns an engine running the default check sequence. A nil logger
// discards output.
func New(exec Executor, policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		exec:   exec,
		policy: policy,
		logger: logger,
		checks: DefaultChecks(),
	}
}

// Run executes every check once and returns the verdict. Nothing is retained
// between runs.
func (e *Engine) Run(ctx context.Context) *Verdict {
	v := &Verdict{
		RunID:     uuid.NewString(),
		Endpoint:  e.policy.Endpoint,
		StartedAt: time.Now(),
	}
	logger := e.logger.With("run_id", v.RunID)
	env := Env{Exec: e.exec, Policy: e.policy, Logger: logger}

	var st State
	for _, c := range e.checks {
		start := time.Now()
		out, next := c.Run(ctx, env, st)
		out.Duration = time.Since(start)
		st = next
		v.Outcomes = append(v.Outcomes, out)

		logger.Info("check finished",
			"check", out.Check,
			"status", out.Status,
			"duration_ms", out.Duration.Milliseconds(),
		)
		logger.Debug("check detail", "check", out.Check, "detail", out.Detail)

		if st.Halt {
			logger.Warn("aborting remaining checks", "check", out.Check, "detail", out.Detail)
			break
		}
	}

	v.FinishedAt = time.Now()
	logger.Info("run finished",
		"success", v.Success(),
		"reachable", st.Reachable,
		"subgraph_detected", st.SubgraphDetected,
		"duration_ms", v.Duration().Milliseconds(),
	)
	return v
}
