// Package config loads declaratii.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jemish-virani/declaratii-anaf/pkg/cache"
	"github.com/jemish-virani/declaratii-anaf/pkg/gate"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "declaratii.yaml"

// DefaultListen is the HTTP listen address.
const DefaultListen = ":8080"

// Environment overrides.
const (
	EnvListen      = "DECLARATII_LISTEN"
	EnvWorkspace   = "DECLARATII_WORKSPACE"
	EnvCacheTTL    = "DECLARATII_CACHE_TTL"
	EnvGateTimeout = "DECLARATII_GATE_TIMEOUT"
)

// DefaultYAML is written by -print-config as a starting point.
const DefaultYAML = `# declaratii configuration
listen: ":8080"

# Per-request directories are created here. Empty uses the OS temp dir.
workspace_root: ""

# Rendered artifacts stay downloadable for this long.
cache_ttl: 10m

# Longest wait for the plugin gate before answering "server busy".
gate_timeout: 2m

# One entry per declaration type. The type comes from the last segment of
# package ("dec.d112." -> d112) unless type is set.
plugins:
  - package: dec.d112.
    family: xml
    options:
      required_attributes: [cif, den]
      receipt:
        format: html
  # - package: dec.d394.
  #   family: command
  #   options:
  #     validator: [java, -jar, DUKIntegrator.jar, -v, D394, "{input}", "{errors}"]
  #     renderer: [java, -jar, DUKIntegrator.jar, -p, D394, "{input}", "{output}"]
  #     timeout: 5m
`

// Duration is a time.Duration that reads "10m" style strings from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration: %w", err)
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the service configuration.
type Config struct {
	Listen        string         `yaml:"listen"`
	WorkspaceRoot string         `yaml:"workspace_root"`
	CacheTTL      Duration       `yaml:"cache_ttl"`
	GateTimeout   Duration       `yaml:"gate_timeout"`
	Plugins       []plugin.Entry `yaml:"plugins"`
}

// Default returns the built-in defaults with no plugins.
func Default() Config {
	return Config{
		Listen:      DefaultListen,
		CacheTTL:    Duration(cache.DefaultTTL),
		GateTimeout: Duration(gate.DefaultTimeout),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path tries DefaultFile and falls back to
// the defaults when it does not exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvListen); ok && strings.TrimSpace(v) != "" {
		c.Listen = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvWorkspace); ok && strings.TrimSpace(v) != "" {
		c.WorkspaceRoot = strings.TrimSpace(v)
	}
	for _, override := range []struct {
		name   string
		target *Duration
	}{
		{EnvCacheTTL, &c.CacheTTL},
		{EnvGateTimeout, &c.GateTimeout},
	} {
		v, ok := lookup(override.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", override.name, err)
		}
		*override.target = Duration(parsed)
	}
	return nil
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("config: listen address is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("config: cache_ttl must be positive, got %s", c.CacheTTL.Std()))
	}
	if c.GateTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: gate_timeout must not be negative, got %s", c.GateTimeout.Std()))
	}
	for idx, entry := range c.Plugins {
		if strings.TrimSpace(entry.Package) == "" && strings.TrimSpace(entry.Type) == "" {
			errs = append(errs, fmt.Errorf("config: plugins[%d]: package or type is required", idx))
		}
	}
	return errors.Join(errs...)
}

func parseDuration(raw string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	return parsed, nil
}
