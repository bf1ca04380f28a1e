// Package config loads named connection profiles from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultTimeout = Duration(30 * time.Second)

// Duration decodes YAML values like "30s" or "2m" via time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration file structure.
type Config struct {
	// DefaultProfile names the profile used when none is requested.
	DefaultProfile string `yaml:"default_profile"`

	// Profiles maps a profile name to its connection settings.
	Profiles map[string]*ProfileConfig `yaml:"profiles"`
}

// ProfileConfig holds the connection and credential settings for one
// target. Token wins over username/password when both are set.
type ProfileConfig struct {
	BaseURL       string   `yaml:"base_url"`
	Token         string   `yaml:"token"`
	TokenFile     string   `yaml:"token_file"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	SkipTLSVerify bool     `yaml:"skip_tls_verify"`
	Timeout       Duration `yaml:"timeout"`
	MaxRetries    int      `yaml:"max_retries"`
}

// Load reads and validates configuration from the specified path.
// Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", expandedPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Profile returns the named profile, falling back to the default when
// name is empty.
func (c *Config) Profile(name string) (*ProfileConfig, string, error) {
	if name == "" {
		name = c.DefaultProfile
	}

	profile, ok := c.Profiles[name]
	if !ok {
		return nil, "", fmt.Errorf("profile %q not found in config", name)
	}
	return profile, name, nil
}

// ProfileNames returns all profile names in a stable order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyDefaults sets default values for optional config fields.
func applyDefaults(cfg *Config) error {
	if cfg.DefaultProfile == "" && len(cfg.Profiles) == 1 {
		for name := range cfg.Profiles {
			cfg.DefaultProfile = name
		}
	}

	for name, profile := range cfg.Profiles {
		if profile == nil {
			continue
		}
		if profile.Timeout == 0 {
			profile.Timeout = defaultTimeout
		}

		// token_file lets credentials live outside the config file.
		if profile.Token == "" && profile.TokenFile != "" {
			tokenPath, err := expandTilde(profile.TokenFile)
			if err != nil {
				return fmt.Errorf("expanding token_file for profile %s: %w", name, err)
			}
			data, err := os.ReadFile(tokenPath)
			if err != nil {
				return fmt.Errorf("reading token_file for profile %s: %w", name, err)
			}
			profile.Token = strings.TrimSpace(string(data))
		}
	}

	return nil
}

// validate ensures required config fields are present and valid.
func validate(cfg *Config) error {
	if len(cfg.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}

	if cfg.DefaultProfile != "" {
		if _, ok := cfg.Profiles[cfg.DefaultProfile]; !ok {
			return fmt.Errorf("default_profile %q is not a defined profile", cfg.DefaultProfile)
		}
	}

	for name, profile := range cfg.Profiles {
		if profile == nil {
			return fmt.Errorf("profile %s is empty", name)
		}
		if profile.BaseURL == "" {
			return fmt.Errorf("profile %s: base_url is required", name)
		}
		if profile.Token == "" && (profile.Username == "" || profile.Password == "") {
			return fmt.Errorf("profile %s: either token or username/password is required", name)
		}
	}

	return nil
}

// expandTilde replaces ~ at the start of a path with the user's home directory.
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	if path == "~" {
		return homeDir, nil
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}
