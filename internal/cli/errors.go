package cli

import (
	"errors"
	"strings"

	"github.com/y0f/graphql-check/internal/config"
	"github.com/y0f/graphql-check/internal/report"
)

// ErrUsage indicates invalid flags or arguments.
var ErrUsage = errors.New("usage error")

const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitConfig  = 2
)

// ExitCode maps the error returned by the root command to a process status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid), errors.Is(err, ErrUsage):
		return ExitConfig
	default:
		return ExitFailed
	}
}

// reported is true for errors already written to stderr by the reporter.
func reported(err error) bool {
	return errors.Is(err, report.ErrChecksFailed) || errors.Is(err, config.ErrInvalid)
}

// errorString flattens joined errors into one line separated by ", ".
func errorString(err error) string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var parts []string
		for _, e := range j.Unwrap() {
			parts = append(parts, errorString(e))
		}
		return strings.Join(parts, ", ")
	}
	return err.Error()
}
