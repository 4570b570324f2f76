package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models govsure.yml.
type Config struct {
	API struct {
		BaseURL  string `yaml:"base_url"`
		TokenEnv string `yaml:"token_env"`
		Token    string `yaml:"token"`
	} `yaml:"api"`
	Assist struct {
		BaseURL  string `yaml:"base_url"`
		TokenEnv string `yaml:"token_env"`
	} `yaml:"assist"`
	Defaults struct {
		PageSize    int    `yaml:"page_size"`
		ActiveLimit int    `yaml:"active_limit"`
		Platform    string `yaml:"platform"`
	} `yaml:"defaults"`
}

const (
	defaultBaseURL  = "http://localhost:8000"
	defaultTokenEnv = "GOVSURE_ACCESS_TOKEN"
)

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with govsure config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("config.api.base_url must be an http(s) URL")
	}
	if c.Defaults.PageSize < 0 {
		return fmt.Errorf("config.defaults.page_size must not be negative")
	}
	if c.Defaults.ActiveLimit < 0 {
		return fmt.Errorf("config.defaults.active_limit must not be negative")
	}
	switch c.Defaults.Platform {
	case "", "apple", "android", "google", "outlook":
	default:
		return fmt.Errorf("config.defaults.platform must be one of apple, android, google, outlook")
	}
	return nil
}

// ResolveToken returns the bearer token: the env var named by token_env wins,
// then the inline token. Empty means unauthenticated.
func (c *Config) ResolveToken() string {
	env := c.API.TokenEnv
	if env == "" {
		env = defaultTokenEnv
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return c.API.Token
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "govsure.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML text.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `api:
  base_url: http://localhost:8000
  token_env: GOVSURE_ACCESS_TOKEN

assist:
  base_url: http://localhost:8000
  token_env: GOVSURE_ACCESS_TOKEN

defaults:
  page_size: 20
  active_limit: 5
  platform: google
`
