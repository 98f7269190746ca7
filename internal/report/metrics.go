package report

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/y0f/graphql-check/internal/engine"
)

const namespace = "graphql_check"

// WriteMetrics writes the verdict to path in the node_exporter textfile
// format. The file is replaced atomically.
func WriteMetrics(path string, v *engine.Verdict) error {
	reg := prometheus.NewRegistry()

	outcome := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "check_outcome",
		Help:      "1 for the status each check ended with, 0 otherwise",
	}, []string{"endpoint", "check", "status"})

	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "check_duration_seconds",
		Help:      "Time spent in each check",
	}, []string{"endpoint", "check"})

	success := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "success",
		Help:      "1 if no check failed in the last run",
	}, []string{"endpoint"})

	lastRun := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	}, []string{"endpoint"})

	reg.MustRegister(outcome, duration, success, lastRun)

	for _, o := range v.Outcomes {
		for _, s := range []engine.Status{engine.StatusPass, engine.StatusFail, engine.StatusSkipped} {
			val := 0.0
			if o.Status == s {
				val = 1
			}
			outcome.WithLabelValues(v.Endpoint, o.Check, string(s)).Set(val)
		}
		duration.WithLabelValues(v.Endpoint, o.Check).Set(o.Duration.Seconds())
	}
	if v.Success() {
		success.WithLabelValues(v.Endpoint).Set(1)
	} else {
		success.WithLabelValues(v.Endpoint).Set(0)
	}
	lastRun.WithLabelValues(v.Endpoint).Set(float64(v.FinishedAt.Unix()))

	return prometheus.WriteToTextfile(path, reg)
}
