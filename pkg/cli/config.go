package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/fastest-runner/pkg/config"
)

// resolveConfig builds the base configuration for a run; env holds the
// run command's -e pairs.
//
// Priority: script header > CLI flags > fastest.yaml > defaults. The script
// header is applied per script by the executor.
func resolveConfig(c *cli.Context, paths []string, env map[string]string) (*config.Config, error) {
	var file *config.Config
	var err error
	if path := c.String("config"); path != "" {
		file, err = config.Load(path)
	} else {
		file, err = config.LoadFromDir(configDir(paths))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	caps, err := parseCapabilities(c.String("caps"), c.StringSlice("cap"))
	if err != nil {
		return nil, err
	}

	flags := &config.Config{
		ServerURL:      c.String("server-url"),
		PackageName:    c.String("package"),
		ImplicitWaitMs: c.Int("implicit-wait"),
		Capabilities:   caps,
		Env:            env,
	}
	return config.Defaults().Merge(file).Merge(flags), nil
}

// configDir is where fastest.yaml is looked up: the first path when it is a
// directory, otherwise its parent. With no paths, the working directory.
func configDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
		return paths[0]
	}
	return filepath.Dir(paths[0])
}

// parseCapabilities merges a JSON capabilities file with KEY=VALUE pairs;
// pairs win. Values are read as YAML scalars, so true and 5 keep their type.
func parseCapabilities(file string, pairs []string) (map[string]interface{}, error) {
	caps := map[string]interface{}{}
	if file != "" {
		loaded, err := loadCapabilities(file)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			caps[k] = v
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid capability %q: expected KEY=VALUE", pair)
		}
		var value interface{} = raw
		if raw != "" {
			var typed interface{}
			if err := yaml.Unmarshal([]byte(raw), &typed); err == nil && typed != nil {
				switch typed.(type) {
				case bool, int, float64:
					value = typed
				}
			}
		}
		caps[key] = value
	}

	if len(caps) == 0 {
		return nil, nil
	}
	return caps, nil
}

// loadCapabilities loads desired capabilities from a JSON file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps JSON: %w", err)
	}
	return caps, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
