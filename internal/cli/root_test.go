package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y0f/graphql-check/internal/config"
	"github.com/y0f/graphql-check/internal/report"
	"github.com/y0f/graphql-check/internal/testserver"
)

var envKeys = []string{
	"INPUT_ENDPOINT", "INPUT_AUTH", "INPUT_SUBGRAPH", "INPUT_ALLOW_INTROSPECTION",
	"INPUT_INSECURE_SUBGRAPH", "INPUT_CONFIG", "INPUT_FORMAT", "INPUT_TIMEOUT",
	"GITHUB_OUTPUT",
}

// isolateEnv unsets the variables the command reads and restores them after
// the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		old, ok := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if ok {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	cmd := NewRootCommand("dev")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	code := execute(context.Background(), cmd)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestSecuredSubgraphPasses(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{
		Subgraph:           true,
		AuthName:           "X-Api-Key",
		AuthValue:          "secret",
		UnauthorizedStatus: http.StatusUnauthorized,
	})
	defer srv.Close()

	res := runCLI(t, "--log-level", "debug", srv.URL, "X-Api-Key: secret", "true", "", "false")

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "All checks passed")
	assert.NotContains(t, res.stderr, "Error:")
	assert.Contains(t, res.stderr, "X-Api-Key: [redacted]")
	assert.NotContains(t, res.stderr, "secret")
}

func TestIntrospectionFailureWritesOutputs(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	ghOut := filepath.Join(t.TempDir(), "github_output")
	t.Setenv("GITHUB_OUTPUT", ghOut)

	res := runCLI(t, srv.URL)

	assert.Equal(t, ExitFailed, res.code)
	assert.Contains(t, res.stderr, "Error: introspection is enabled for the GraphQL server but not allowed\n")
	assert.Contains(t, res.stdout, "1 of 4 checks failed")

	data, err := os.ReadFile(ghOut)
	require.NoError(t, err)
	assert.Equal(t, "error=introspection is enabled for the GraphQL server but not allowed\n", string(data))
}

func TestUnreachableEndpoint(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	url := srv.URL
	srv.Close()

	res := runCLI(t, "--timeout", "2s", url)

	assert.Equal(t, ExitFailed, res.code)
	assert.Contains(t, res.stderr, "Error: could not connect:")
}

func TestMissingEndpointIsConfigError(t *testing.T) {
	isolateEnv(t)
	ghOut := filepath.Join(t.TempDir(), "github_output")

	res := runCLI(t, "--github-output", ghOut)

	assert.Equal(t, ExitConfig, res.code)
	assert.Equal(t, "Error: input `endpoint` is required\n", res.stderr)
	assert.Empty(t, res.stdout)

	data, err := os.ReadFile(ghOut)
	require.NoError(t, err)
	assert.Equal(t, "error=input `endpoint` is required\n", string(data))
}

func TestBadBooleansReportedTogether(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "https://api.example.com/graphql", "", "yes", "maybe", "false")

	assert.Equal(t, ExitConfig, res.code)
	assert.Equal(t,
		"Error: input `subgraph` can only be `true` or `false`, input `allow_introspection` can only be `true` or `false`\n",
		res.stderr)
}

func TestBadAuthHeader(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "https://api.example.com/graphql", "Bearer abc")

	assert.Equal(t, ExitConfig, res.code)
	assert.Contains(t, res.stderr, "provided `auth` input was not a valid header in the format of `name: value`")
}

func TestTooManyArguments(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "a", "b", "c", "d", "e", "f")

	assert.Equal(t, ExitConfig, res.code)
	assert.Contains(t, res.stderr, "usage error")
	assert.Contains(t, res.stderr, "--help")
}

func TestUnknownFlag(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "--no-such-flag")

	assert.Equal(t, ExitConfig, res.code)
	assert.Contains(t, res.stderr, "usage error")
}

func TestInputsFromEnvironment(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	t.Setenv("INPUT_ENDPOINT", srv.URL)
	t.Setenv("INPUT_ALLOW_INTROSPECTION", "true")

	res := runCLI(t)

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestPositionalOverridesFlags(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	res := runCLI(t, "--endpoint", "http://127.0.0.1:1/graphql", "--allow-introspection", "false", srv.URL, "", "", "true")

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Len(t, srv.Requests(), 2)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	t.Setenv("INPUT_ENDPOINT", "http://127.0.0.1:1/graphql")
	t.Setenv("INPUT_ALLOW_INTROSPECTION", "false")

	res := runCLI(t, "--endpoint", srv.URL, "--allow-introspection", "true")

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestConfigFileWithFlagOverrides(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "graphql-check.yaml")
	data := "target:\n  endpoint: " + srv.URL + "\npolicy:\n  allow_introspection: false\noutput:\n  format: text\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	res := runCLI(t, "--config", path)
	assert.Equal(t, ExitFailed, res.code)

	res = runCLI(t, "--config", path, "--allow-introspection", "true", "--format", "json")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, srv.URL, out["endpoint"])
}

func TestMissingConfigFile(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, ExitConfig, res.code)
	assert.Contains(t, res.stderr, "Error: read config:")
}

func TestEnvFile(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{})
	defer srv.Close()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("INPUT_ENDPOINT="+srv.URL+"\nINPUT_ALLOW_INTROSPECTION=true\n"), 0644))

	res := runCLI(t, "--env-file", path)

	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestMetricsFile(t *testing.T) {
	isolateEnv(t)
	srv := testserver.New(testserver.Options{DisableIntrospection: true})
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "graphql_check.prom")
	res := runCLI(t, "--metrics-file", path, "--log-format", "json", "--log-level", "debug", srv.URL)
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "graphql_check_success")
	assert.Contains(t, res.stderr, `"run_id"`)
	assert.Contains(t, res.stderr, `"endpoint"`)
}

func TestVersion(t *testing.T) {
	isolateEnv(t)

	res := runCLI(t, "--version")

	assert.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "graphql-check version dev")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", fmt.Errorf("%w: bad flag", ErrUsage), ExitConfig},
		{"config", fmt.Errorf("%w: missing endpoint", config.ErrInvalid), ExitConfig},
		{"checks", fmt.Errorf("%w: auth not enforced", report.ErrChecksFailed), ExitFailed},
		{"other", errors.New("write summary: broken pipe"), ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := errors.Join(
		errors.Join(errors.New("first"), errors.New("second")),
		errors.New("third"),
	)
	assert.Equal(t, "first, second, third", errorString(err))
	assert.Equal(t, "single", errorString(errors.New("single")))
}
