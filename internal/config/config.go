package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the optional YAML kernel configuration.
type Config struct {
	Kernel struct {
		ID       string `yaml:"id"`
		UserName string `yaml:"user_name"`
	} `yaml:"kernel"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"api"`

	Control struct {
		// Dedicated gives control traffic its own parent-state slot in the
		// kernel, so a transport may deliver control on a second goroutine.
		// The zmq and inproc transports deliver all channels from one
		// goroutine, so with them interrupt_request still waits behind a
		// running execute_request.
		Dedicated bool `yaml:"dedicated"`
	} `yaml:"control"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Kernel.ID = "xeus-go"
	cfg.Kernel.UserName = "kernel"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.API.Listen = "127.0.0.1:9090"
	cfg.History.Path = defaultHistoryPath()
	return cfg
}

// Load reads and parses the kernel configuration, applying ${VAR}
// interpolation, defaults, and validation.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", absPath)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Kernel.ID == "" {
		cfg.Kernel.ID = defaults.Kernel.ID
	}
	if cfg.Kernel.UserName == "" {
		cfg.Kernel.UserName = defaults.Kernel.UserName
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaults.History.Path
	}
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[cfg.Log.Format] {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}

	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api.enabled")
	}

	// Unresolved env vars surface here rather than as a bad runtime path.
	if envVarPattern.MatchString(cfg.History.Path) {
		matches := envVarPattern.FindStringSubmatch(cfg.History.Path)
		if len(matches) > 1 {
			return fmt.Errorf("history.path: environment variable ${%s} is not set", matches[1])
		}
		return fmt.Errorf("history.path: unresolved environment variable")
	}

	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "xeus-go", "history.db")
	}
	return filepath.Join(home, ".local", "share", "xeus-go", "history.db")
}
