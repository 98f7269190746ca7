package engine

import (
	"strings"
	"time"
)

// Status is the result of a single named check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// Outcome is the recorded result of one check.
type Outcome struct {
	Check    string
	Status   Status
	Detail   string
	Duration time.Duration
}

func pass(check, detail string) Outcome {
	return Outcome{Check: check, Status: StatusPass, Detail: detail}
}

func fail(check, detail string) Outcome {
	return Outcome{Check: check, Status: StatusFail, Detail: detail}
}

func skip(check, detail string) Outcome {
	return Outcome{Check: check, Status: StatusSkipped, Detail: detail}
}

// Verdict is the aggregated result of one run, outcomes in check order.
type Verdict struct {
	RunID      string
	Endpoint   string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Success reports whether no check failed.
func (v *Verdict) Success() bool {
	for _, o := range v.Outcomes {
		if o.Status == StatusFail {
			return false
		}
	}
	return true
}

// Failures returns the failed outcomes in check order.
func (v *Verdict) Failures() []Outcome {
	var out []Outcome
	for _, o := range v.Outcomes {
		if o.Status == StatusFail {
			out = append(out, o)
		}
	}
	return out
}

// Outcome returns the outcome recorded for check, if it ran.
func (v *Verdict) Outcome(check string) (Outcome, bool) {
	for _, o := range v.Outcomes {
		if o.Check == check {
			return o, true
		}
	}
	return Outcome{}, false
}

// Count returns how many outcomes have the given status.
func (v *Verdict) Count(s Status) int {
	n := 0
	for _, o := range v.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// ErrorMessage joins the details of failed checks with ", ", dropping exact
// duplicates. It is empty when the verdict is successful.
func (v *Verdict) ErrorMessage() string {
	seen := make(map[string]bool)
	var parts []string
	for _, o := range v.Failures() {
		if seen[o.Detail] {
			continue
		}
		seen[o.Detail] = true
		parts = append(parts, o.Detail)
	}
	return strings.Join(parts, ", ")
}

// Duration is the wall time of the run.
func (v *Verdict) Duration() time.Duration {
	return v.FinishedAt.Sub(v.StartedAt)
}
