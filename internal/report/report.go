// Package report turns a Verdict into the process outputs: a summary on
// stdout, the error line on stderr, the GitHub step output and an optional
// Prometheus textfile.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/template"
	"time"

	"github.com/y0f/graphql-check/internal/engine"
)

// ErrChecksFailed is returned when the verdict holds at least one failure.
var ErrChecksFailed = errors.New("checks failed")

const summaryTemplate = `GraphQL endpoint: {{.Endpoint}}
{{range .Outcomes}}{{icon .Status}} {{.Check}}: {{.Status}}{{if .Duration}} ({{ms .Duration}}){{end}}{{if .Detail}} - {{.Detail}}{{end}}
{{end}}{{if .Success}}All checks passed{{else}}{{.Failed}} of {{len .Outcomes}} checks failed{{end}} in {{ms .Duration}}
`

var summary = template.Must(template.New("summary").Funcs(template.FuncMap{
	"icon": icon,
	"ms":   func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
}).Parse(summaryTemplate))

func icon(s engine.Status) string {
	switch s {
	case engine.StatusPass:
		return "✅"
	case engine.StatusFail:
		return "❌"
	default:
		return "⏭️"
	}
}

type summaryView struct {
	Endpoint string
	Outcomes []engine.Outcome
	Success  bool
	Failed   int
	Duration time.Duration
}

// WriteText renders the human readable summary.
func WriteText(w io.Writer, v *engine.Verdict) error {
	return summary.Execute(w, summaryView{
		Endpoint: v.Endpoint,
		Outcomes: v.Outcomes,
		Success:  v.Success(),
		Failed:   v.Count(engine.StatusFail),
		Duration: v.Duration(),
	})
}

type jsonOutcome struct {
	Check      string `json:"check"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type jsonVerdict struct {
	RunID      string        `json:"run_id"`
	Endpoint   string        `json:"endpoint"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Checks     []jsonOutcome `json:"checks"`
}

// WriteJSON renders the verdict as a single JSON document.
func WriteJSON(w io.Writer, v *engine.Verdict) error {
	out := jsonVerdict{
		RunID:      v.RunID,
		Endpoint:   v.Endpoint,
		Success:    v.Success(),
		Error:      v.ErrorMessage(),
		StartedAt:  v.StartedAt,
		DurationMS: v.Duration().Milliseconds(),
		Checks:     make([]jsonOutcome, 0, len(v.Outcomes)),
	}
	for _, o := range v.Outcomes {
		out.Checks = append(out.Checks, jsonOutcome{
			Check:      o.Check,
			Status:     string(o.Status),
			Detail:     o.Detail,
			DurationMS: o.Duration.Milliseconds(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Reporter writes every configured output for one run.
type Reporter struct {
	Stdout io.Writer
	Stderr io.Writer
	// Format is "text" or "json".
	Format string
	// GitHubOutput is the step output file. Empty disables it.
	GitHubOutput string
	// MetricsFile is a Prometheus textfile path. Empty disables it.
	MetricsFile string
	Logger      *slog.Logger
}

// Report writes the outputs for v. It returns ErrChecksFailed wrapping the
// error string when any check failed, or the first output error.
func (r *Reporter) Report(v *engine.Verdict) error {
	var err error
	if r.Format == "json" {
		err = WriteJSON(r.Stdout, v)
	} else {
		err = WriteText(r.Stdout, v)
	}
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if r.MetricsFile != "" {
		if err := WriteMetrics(r.MetricsFile, v); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		r.logger().Debug("metrics written", "path", r.MetricsFile)
	}

	if v.Success() {
		return nil
	}
	msg := v.ErrorMessage()
	if err := r.Fail(msg); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrChecksFailed, msg)
}

// Fail surfaces msg on stderr and in the step output. It is also used for
// configuration errors, which never reach the engine.
func (r *Reporter) Fail(msg string) error {
	fmt.Fprintf(r.Stderr, "Error: %s\n", msg)
	if r.GitHubOutput == "" {
		return nil
	}
	if err := AppendGitHubOutput(r.GitHubOutput, "error", msg); err != nil {
		return fmt.Errorf("write github output: %w", err)
	}
	r.logger().Debug("github output written", "path", r.GitHubOutput)
	return nil
}

func (r *Reporter) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
