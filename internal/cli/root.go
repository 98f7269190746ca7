// Package cli wires configuration, the check engine and the reporter behind
// a single cobra command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/y0f/graphql-check/internal/checker"
	"github.com/y0f/graphql-check/internal/config"
	"github.com/y0f/graphql-check/internal/engine"
	"github.com/y0f/graphql-check/internal/report"
)

// positional lists the inputs accepted as arguments, in order.
var positional = []string{"endpoint", "auth", "subgraph", "allow-introspection", "insecure-subgraph"}

// NewRootCommand builds the graphql-check command. Each call returns an
// independent command with its own viper instance.
func NewRootCommand(version string) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "graphql-check [endpoint [auth [subgraph [allow_introspection [insecure_subgraph]]]]]",
		Short: "Post-deploy health and security checks for a GraphQL endpoint",
		Long: `Run one pass of checks against a deployed GraphQL endpoint and exit.

The endpoint must answer { __typename }. Federation subgraphs must expose
their SDL when declared and require authentication unless explicitly
allowed. Anonymous introspection must be rejected unless allowed.

Inputs are read from positional arguments, then flags, then INPUT_*
environment variables, then the YAML file given by --config.

Examples:
  # Check a public API with introspection disabled
  graphql-check --endpoint https://api.example.com/graphql

  # Check a subgraph that requires a token
  graphql-check https://subgraph.internal/graphql "Authorization: Bearer $TOKEN" true

  # Machine readable summary
  graphql-check --config graphql-check.yaml --format json`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(len(positional))(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, version, args)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	f := cmd.Flags()
	f.String("endpoint", "", "GraphQL endpoint URL")
	f.String("auth", "", "auth header sent with each query, as `Name: value`")
	f.String("subgraph", "", "declare the endpoint a federation subgraph (true|false)")
	f.String("allow-introspection", "", "allow anonymous introspection (true|false, defaults to --subgraph)")
	f.String("insecure-subgraph", "", "allow a subgraph without authentication (true|false)")
	f.String("config", "", "path to YAML configuration file")
	f.String("env-file", "", "load environment variables from a .env file")
	f.Duration("timeout", 10*time.Second, "timeout for each request")
	f.String("proxy", "", "http, https or socks5 proxy URL")
	f.Bool("skip-tls-verify", false, "skip TLS certificate verification")
	f.Bool("block-private-targets", false, "refuse to connect to private or reserved addresses")
	f.Float64("rate-limit", 0, "maximum requests per second, 0 disables pacing")
	f.String("log-level", "info", "log level (debug|info|warn|error)")
	f.String("log-format", "text", "log format (text|json)")
	f.String("format", "text", "summary format (text|json)")
	f.String("github-output", "", "step output file (defaults to $GITHUB_OUTPUT)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")

	v.SetEnvPrefix("INPUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github-output", "GITHUB_OUTPUT")
	_ = v.BindPFlags(f)

	return cmd
}

// Execute runs the root command and returns the process exit status.
func Execute(ctx context.Context, version string) int {
	return execute(ctx, NewRootCommand(version))
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err != nil && !reported(err) {
		cmd.PrintErrf("Error: %v\n", err)
		if errors.Is(err, ErrUsage) {
			cmd.PrintErrf("Run '%s --help' for usage.\n", cmd.CommandPath())
		}
	}
	return ExitCode(err)
}

func run(cmd *cobra.Command, v *viper.Viper, version string, args []string) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	rep := &report.Reporter{Stdout: stdout, Stderr: stderr}

	cfg, err := buildConfig(v, args)
	if cfg != nil {
		rep.GitHubOutput = cfg.Output.GitHubOutput
	} else {
		rep.GitHubOutput = v.GetString("github-output")
	}
	if err != nil {
		return configFailure(rep, err)
	}

	policy, err := cfg.EnginePolicy()
	if err != nil {
		return configFailure(rep, err)
	}
	exec, err := checker.NewHTTPExecutor(policy.Endpoint, cfg.ExecutorOptions("graphql-check/"+version))
	if err != nil {
		return configFailure(rep, err)
	}

	logger := newLogger(cfg.Logging, stderr).With("endpoint", policy.Endpoint)
	auth := "none"
	if policy.Auth != nil {
		auth = policy.Auth.String()
	}
	logger.Debug("starting checks",
		"version", version,
		"auth", auth,
		"subgraph", policy.DeclaredSubgraph,
		"allow_introspection", policy.AllowIntrospection,
		"insecure_subgraph", policy.InsecureSubgraph,
	)

	verdict := engine.New(exec, policy, logger).Run(cmd.Context())

	rep.Format = cfg.Output.Format
	rep.MetricsFile = cfg.Output.MetricsFile
	rep.Logger = logger
	return rep.Report(verdict)
}

// buildConfig layers defaults, the YAML file, env and flags, then the
// positional inputs, and validates the result. The config is returned
// alongside validation errors so outputs can still be located.
func buildConfig(v *viper.Viper, args []string) (*config.Config, error) {
	if path := v.GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := config.Defaults()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v.IsSet("timeout") {
		cfg.Probe.Timeout = v.GetDuration("timeout")
	}
	if v.IsSet("proxy") {
		cfg.Probe.Proxy = v.GetString("proxy")
	}
	if v.IsSet("skip-tls-verify") {
		cfg.Probe.SkipTLSVerify = v.GetBool("skip-tls-verify")
	}
	if v.IsSet("block-private-targets") {
		cfg.Probe.BlockPrivateTargets = v.GetBool("block-private-targets")
	}
	if v.IsSet("rate-limit") {
		cfg.Probe.RateLimit = v.GetFloat64("rate-limit")
	}
	if v.IsSet("log-level") {
		cfg.Logging.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		cfg.Logging.Format = v.GetString("log-format")
	}
	if v.IsSet("format") {
		cfg.Output.Format = v.GetString("format")
	}
	if v.IsSet("github-output") {
		cfg.Output.GitHubOutput = v.GetString("github-output")
	}
	if v.IsSet("metrics-file") {
		cfg.Output.MetricsFile = v.GetString("metrics-file")
	}

	inputs := make(map[string]string, len(positional))
	for i, name := range positional {
		inputs[name] = v.GetString(name)
		if i < len(args) && args[i] != "" {
			inputs[name] = args[i]
		}
	}

	applyErr := cfg.ApplyInputs(config.Inputs{
		Endpoint:           inputs["endpoint"],
		Auth:               inputs["auth"],
		Subgraph:           inputs["subgraph"],
		AllowIntrospection: inputs["allow-introspection"],
		InsecureSubgraph:   inputs["insecure-subgraph"],
	})
	if err := errors.Join(applyErr, cfg.Validate()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configFailure reports err through rep and returns it classified as a
// configuration error.
func configFailure(rep *report.Reporter, err error) error {
	msg := errorString(err)
	if ferr := rep.Fail(msg); ferr != nil {
		return fmt.Errorf("%w: %s (%v)", config.ErrInvalid, msg, ferr)
	}
	return fmt.Errorf("%w: %s", config.ErrInvalid, msg)
}
