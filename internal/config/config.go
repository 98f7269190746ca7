// Package config builds the immutable run configuration: defaults, an
// optional YAML file, then the string inputs handed over by the pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/y0f/graphql-check/internal/checker"
	"github.com/y0f/graphql-check/internal/engine"
	"github.com/y0f/graphql-check/internal/graphql"
)

// ErrInvalid matches every configuration problem via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// FieldError describes one invalid setting. Its message is meant for the
// person who wrote the pipeline step.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string { return e.Msg }

func (e *FieldError) Is(target error) bool { return target == ErrInvalid }

type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Policy  PolicyConfig  `yaml:"policy"`
	Probe   ProbeConfig   `yaml:"probe"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

type TargetConfig struct {
	Endpoint string `yaml:"endpoint" validate:"required,graphql_endpoint"`
	// Auth is a full header line, "Name: value". Empty disables the
	// authentication enforcement probe.
	Auth string `yaml:"auth" validate:"omitempty,auth_header"`
}

type PolicyConfig struct {
	Subgraph bool `yaml:"subgraph"`
	// AllowIntrospection falls back to Subgraph when unset.
	AllowIntrospection *bool `yaml:"allow_introspection"`
	InsecureSubgraph   bool  `yaml:"insecure_subgraph"`
}

type ProbeConfig struct {
	Timeout             time.Duration `yaml:"timeout" validate:"gt=0"`
	Proxy               string        `yaml:"proxy" validate:"omitempty,proxy_url"`
	SkipTLSVerify       bool          `yaml:"skip_tls_verify"`
	BlockPrivateTargets bool          `yaml:"block_private_targets"`
	RateLimit           float64       `yaml:"rate_limit" validate:"gte=0"`
	MaxBodySize         int64         `yaml:"max_body_size" validate:"gt=0,lte=1073741824"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"` // "text" or "json"
}

type OutputConfig struct {
	Format       string `yaml:"format" validate:"oneof=text json"`
	GitHubOutput string `yaml:"github_output"`
	MetricsFile  string `yaml:"metrics_file"`
}

func Defaults() *Config {
	return &Config{
		Probe: ProbeConfig{
			Timeout:     10 * time.Second,
			MaxBodySize: 1 << 20, // 1MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Load reads a YAML file on top of Defaults. Environment variables in the
// file are expanded. The result is not validated: inputs may still complete
// it.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Inputs are the raw string values passed by the pipeline wrapper. An empty
// string leaves the current value untouched.
type Inputs struct {
	Endpoint           string
	Auth               string
	Subgraph           string
	AllowIntrospection string
	InsecureSubgraph   string
}

// ApplyInputs overlays in onto c. Every malformed boolean is reported.
func (c *Config) ApplyInputs(in Inputs) error {
	if v := strings.TrimSpace(in.Endpoint); v != "" {
		c.Target.Endpoint = v
	}
	if strings.TrimSpace(in.Auth) != "" {
		c.Target.Auth = in.Auth
	}

	var errs []error
	if b, err := parseBool("subgraph", in.Subgraph); err != nil {
		errs = append(errs, err)
	} else if b != nil {
		c.Policy.Subgraph = *b
	}
	if b, err := parseBool("allow_introspection", in.AllowIntrospection); err != nil {
		errs = append(errs, err)
	} else if b != nil {
		c.Policy.AllowIntrospection = b
	}
	if b, err := parseBool("insecure_subgraph", in.InsecureSubgraph); err != nil {
		errs = append(errs, err)
	} else if b != nil {
		c.Policy.InsecureSubgraph = *b
	}
	return errors.Join(errs...)
}

func parseBool(name, value string) (*bool, error) {
	var b bool
	switch strings.TrimSpace(value) {
	case "":
		return nil, nil
	case "true":
		b = true
	case "false":
		b = false
	default:
		return nil, &FieldError{Field: name, Msg: fmt.Sprintf("input `%s` can only be `true` or `false`", name)}
	}
	return &b, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	return validateStruct(c)
}

// EnginePolicy resolves the optional overrides into the booleans the engine
// evaluates. It must be called on a validated Config.
func (c *Config) EnginePolicy() (engine.Policy, error) {
	p := engine.Policy{
		Endpoint:           c.Target.Endpoint,
		DeclaredSubgraph:   c.Policy.Subgraph,
		AllowIntrospection: c.Policy.Subgraph,
		InsecureSubgraph:   c.Policy.InsecureSubgraph,
	}
	if c.Policy.AllowIntrospection != nil {
		p.AllowIntrospection = *c.Policy.AllowIntrospection
	}
	if c.Target.Auth != "" {
		h, err := graphql.ParseHeader(c.Target.Auth)
		if err != nil {
			return engine.Policy{}, &FieldError{Field: "target.auth", Msg: err.Error()}
		}
		p.Auth = h
	}
	return p, nil
}

// ExecutorOptions maps the probe settings onto the HTTP executor.
func (c *Config) ExecutorOptions(userAgent string) checker.Options {
	return checker.Options{
		Timeout:       c.Probe.Timeout,
		ProxyURL:      c.Probe.Proxy,
		SkipTLSVerify: c.Probe.SkipTLSVerify,
		BlockPrivate:  c.Probe.BlockPrivateTargets,
		RateLimit:     c.Probe.RateLimit,
		MaxBodySize:   c.Probe.MaxBodySize,
		UserAgent:     userAgent,
	}
}
