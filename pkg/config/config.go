// Package config handles configuration for fastest-runner.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/fastest-runner/pkg/core"
)

// Defaults.
const (
	DefaultServerURL      = "http://127.0.0.1:4723"
	DefaultImplicitWaitMs = 10000
)

// Config is the run configuration (fastest.yaml, or the header document of a
// script).
type Config struct {
	// Automation server
	ServerURL    string                 `yaml:"serverUrl"`
	Capabilities map[string]interface{} `yaml:"capabilities"`

	// App under test
	PackageName string `yaml:"packageName"` // Qualifies viewsById ids

	// Execution settings
	ImplicitWaitMs int               `yaml:"implicitWaitMs"` // Default wait timeout
	Env            map[string]string `yaml:"env"`            // Script variables
}

// Defaults returns a configuration with default values.
func Defaults() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		ImplicitWaitMs: DefaultImplicitWaitMs,
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromDir looks for fastest.yaml or fastest.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try fastest.yaml first
	configPath := filepath.Join(dir, "fastest.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "fastest.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// Merge returns a copy of c with every non-zero field of override applied.
// Capabilities and Env are merged key by key.
func (c *Config) Merge(override *Config) *Config {
	out := *c
	out.Capabilities = mergeMap(c.Capabilities, nil)
	out.Env = mergeMap(c.Env, nil)
	if override == nil {
		return &out
	}

	if override.ServerURL != "" {
		out.ServerURL = override.ServerURL
	}
	if override.PackageName != "" {
		out.PackageName = override.PackageName
	}
	if override.ImplicitWaitMs != 0 {
		out.ImplicitWaitMs = override.ImplicitWaitMs
	}
	out.Capabilities = mergeMap(out.Capabilities, override.Capabilities)
	out.Env = mergeMap(out.Env, override.Env)
	return &out
}

// Validate checks that the configuration can be used to start a session.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return core.ErrMissingRequired.WithMessage("serverUrl is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid serverUrl %q", c.ServerURL)).WithCause(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("serverUrl %q must be an http(s) URL", c.ServerURL))
	}
	if c.ImplicitWaitMs < 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("implicitWaitMs must not be negative, got %d", c.ImplicitWaitMs))
	}
	return nil
}

// ImplicitWait returns the implicit wait as a duration.
func (c *Config) ImplicitWait() time.Duration {
	return time.Duration(c.ImplicitWaitMs) * time.Millisecond
}

// DesiredCapabilities returns the capabilities to create the session with.
// The package name is sent as appPackage unless set explicitly.
func (c *Config) DesiredCapabilities() map[string]interface{} {
	caps := mergeMap(c.Capabilities, nil)
	if caps == nil {
		caps = map[string]interface{}{}
	}
	if _, ok := caps["appPackage"]; !ok && c.PackageName != "" {
		caps["appPackage"] = c.PackageName
	}
	return caps
}

func mergeMap[V any](base, override map[string]V) map[string]V {
	if base == nil && override == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
