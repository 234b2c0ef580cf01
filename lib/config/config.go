// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/libertaria/membrane/lib/identity"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "MEMBRANE_CONFIG"

// Config is the complete agent configuration.
type Config struct {
	Listener ListenerConfig `yaml:"listener"`
	Control  ControlConfig  `yaml:"control"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Policy   PolicyConfig   `yaml:"policy"`
	Agent    AgentConfig    `yaml:"agent"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ListenerConfig configures the L0 event socket.
type ListenerConfig struct {
	// SocketPath is where the transport layer connects.
	// Default: /tmp/libertaria_l0.sock
	SocketPath string `yaml:"socket_path" validate:"required"`

	// SocketMode is the octal permission of the socket file.
	// Default: 0660
	SocketMode string `yaml:"socket_mode" validate:"required"`

	// QueueSize bounds the shared event queue. A full queue blocks
	// connection handlers.
	// Default: 1000
	QueueSize int `yaml:"queue_size" validate:"gte=1"`
}

// Mode parses SocketMode.
func (c ListenerConfig) Mode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(strings.TrimPrefix(c.SocketMode, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("listener.socket_mode %q is not an octal mode: %w", c.SocketMode, err)
	}
	if mode > 0o777 {
		return 0, fmt.Errorf("listener.socket_mode %q has bits outside 0777", c.SocketMode)
	}
	return os.FileMode(mode), nil
}

// ControlConfig configures the operator control socket.
type ControlConfig struct {
	// SocketPath is the control socket. Empty disables it.
	// Default: /tmp/membrane_control.sock
	SocketPath string `yaml:"socket_path"`
}

// Oracle modes.
const (
	OracleMemory = "memory"
	OracleSocket = "socket"
)

// OracleConfig selects and configures the trust engine.
type OracleConfig struct {
	// Mode is "memory" for the in-process engine or "socket" for an
	// external engine reached over its control socket.
	// Default: memory
	Mode string `yaml:"mode" validate:"oneof=memory socket"`

	// SocketPath is the external engine's socket, required in socket
	// mode.
	SocketPath string `yaml:"socket_path" validate:"required_if=Mode socket"`

	// Root is the local node's identity, registered as node 0 by the
	// in-process engine.
	Root identity.DID `yaml:"root"`

	// Seed preloads the in-process engine. Ignored in socket mode.
	Seed SeedConfig `yaml:"seed"`
}

// SeedConfig is the initial state of the in-process engine. Nodes are
// registered in order after the root, so the first seeded node is
// node 1.
type SeedConfig struct {
	Nodes []SeedNode `yaml:"nodes" validate:"dive"`
	Edges []SeedEdge `yaml:"edges" validate:"dive"`
}

// SeedNode registers one identity with optional scores.
type SeedNode struct {
	DID        identity.DID `yaml:"did"`
	Trust      *float64     `yaml:"trust" validate:"omitempty,gte=0,lte=1"`
	Reputation *float64     `yaml:"reputation" validate:"omitempty,gte=0,lte=1"`
}

// SeedEdge adds one risk edge between seeded node ids.
type SeedEdge struct {
	From  uint32        `yaml:"from"`
	To    uint32        `yaml:"to" validate:"nefield=From"`
	Risk  float64       `yaml:"risk" validate:"gte=-1,lte=1"`
	Level uint8         `yaml:"level" validate:"lte=3"`
	TTL   time.Duration `yaml:"ttl" validate:"gte=0"`
}

// PolicyConfig holds the enforcer thresholds.
type PolicyConfig struct {
	// DropThreshold: trust below it drops the packet.
	// Default: 0.1
	DropThreshold float64 `yaml:"drop_threshold" validate:"gte=0,lte=1"`

	// UntrustedThreshold: trust below it deprioritizes the packet.
	// Default: 0.5
	UntrustedThreshold float64 `yaml:"untrusted_threshold" validate:"gte=0,lte=1"`
}

// AgentConfig configures the orchestrator.
type AgentConfig struct {
	// DecisionWorkers is the number of goroutines making policy
	// decisions. Default: 4
	DecisionWorkers int `yaml:"decision_workers" validate:"gte=1,lte=1024"`

	// OracleTimeout bounds each oracle call. Default: 2s
	OracleTimeout time.Duration `yaml:"oracle_timeout" validate:"gt=0"`

	// SweepInterval is the betrayal sweep period. Default: 30s
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`

	// SweepFloor is the lowest anomaly score a sweep turns into an
	// alert. Default: 0.5
	SweepFloor float64 `yaml:"sweep_floor" validate:"gte=0,lte=1"`

	// WatchNodes are swept from startup, in addition to peers that
	// connect.
	WatchNodes []uint32 `yaml:"watch_nodes"`
}

// AlertsConfig configures the alert store and fan-out.
type AlertsConfig struct {
	// Capacity bounds the store. Default: 1000
	Capacity int `yaml:"capacity" validate:"gte=1"`

	// Publish is a mangos URL for the alert PUB socket, such as
	// ipc:///run/membrane/alerts.ipc. Empty disables fan-out.
	Publish string `yaml:"publish" validate:"omitempty,startswith=ipc://|startswith=tcp://|startswith=inproc://"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address is the host:port to serve /metrics on. Empty disables it.
	Address string `yaml:"address"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is json or text. Default: json
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Default returns the configuration used as the base for every file.
func Default() *Config {
	return &Config{
		Listener: ListenerConfig{
			SocketPath: "/tmp/libertaria_l0.sock",
			SocketMode: "0660",
			QueueSize:  1000,
		},
		Control: ControlConfig{
			SocketPath: "/tmp/membrane_control.sock",
		},
		Oracle: OracleConfig{
			Mode: OracleMemory,
		},
		Policy: PolicyConfig{
			DropThreshold:      0.1,
			UntrustedThreshold: 0.5,
		},
		Agent: AgentConfig{
			DecisionWorkers: 4,
			OracleTimeout:   2 * time.Second,
			SweepInterval:   30 * time.Second,
			SweepFloor:      0.5,
		},
		Alerts: AlertsConfig{
			Capacity: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the file named by MEMBRANE_CONFIG. It fails if the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your membrane.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads path over [Default] and expands variables. The result
// is not validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML (or JSON, which YAML accepts) over [Default] and
// expands variables.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths and
// addresses.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Listener.SocketPath = expandVars(c.Listener.SocketPath, vars)
	c.Control.SocketPath = expandVars(c.Control.SocketPath, vars)
	c.Oracle.SocketPath = expandVars(c.Oracle.SocketPath, vars)
	c.Alerts.Publish = expandVars(c.Alerts.Publish, vars)
	c.Metrics.Address = expandVars(c.Metrics.Address, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} with vars[VAR], then the environment,
// then the pattern's default.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and the rules between fields. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return err
		}
		for _, fieldError := range fieldErrors {
			errs = append(errs, formatFieldError(fieldError))
		}
	}

	if _, err := c.Listener.Mode(); err != nil {
		errs = append(errs, err)
	}
	if c.Policy.DropThreshold >= c.Policy.UntrustedThreshold {
		errs = append(errs, fmt.Errorf("policy.drop_threshold (%v) must be below policy.untrusted_threshold (%v)",
			c.Policy.DropThreshold, c.Policy.UntrustedThreshold))
	}
	if c.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Address); err != nil {
			errs = append(errs, fmt.Errorf("metrics.address: %w", err))
		}
	}
	if c.Control.SocketPath != "" && c.Control.SocketPath == c.Listener.SocketPath {
		errs = append(errs, fmt.Errorf("control.socket_path and listener.socket_path are both %s", c.Listener.SocketPath))
	}
	seeded := uint32(len(c.Oracle.Seed.Nodes))
	for i, edge := range c.Oracle.Seed.Edges {
		if edge.From > seeded || edge.To > seeded {
			errs = append(errs, fmt.Errorf("oracle.seed.edges[%d]: %d->%d references a node beyond the %d seeded",
				i, edge.From, edge.To, seeded))
		}
	}

	return errors.Join(errs...)
}

// formatFieldError renders a validator failure with the field's YAML
// path rather than its Go name.
func formatFieldError(fieldError validator.FieldError) error {
	field := yamlPath(fieldError.Namespace())
	switch fieldError.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, fieldError.Param())
	case "gte", "gt", "lte":
		return fmt.Errorf("%s: %v fails %s=%s", field, fieldError.Value(), fieldError.Tag(), fieldError.Param())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, fieldError.Tag())
	}
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// yamlPath turns "Config.Agent.OracleTimeout" into
// "agent.oracle_timeout".
func yamlPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return strings.ToLower(camelBoundary.ReplaceAllString(rest, "${1}_${2}"))
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format must be json or text, got %q", c.Format)
	}
}
