package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models atelier.yml.
type Config struct {
	Marketplace struct {
		// MaxCandidates caps the size of one auction pool.
		MaxCandidates int `yaml:"max_candidates"`
		// MaxBounty caps a single bid, in minor currency units. 0 means no cap.
		MaxBounty int64 `yaml:"max_bounty"`
	} `yaml:"marketplace"`
	Review struct {
		// AllowedMediaTypes is the artifact allow-list checked by review intake.
		AllowedMediaTypes []string `yaml:"allowed_media_types"`
		// MaxScore bounds uploader ratings of a finished review.
		MaxScore float64 `yaml:"max_score"`
	} `yaml:"review"`
	Notify struct {
		// PushURL, when set, enables the fire-and-forget push notifier.
		PushURL            string `yaml:"push_url"`
		RequestTimeoutSecs int    `yaml:"request_timeout_seconds"`
	} `yaml:"notify"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Logging  struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// WebhookConfig describes one history-log delivery sink.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with atl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.MaxCandidates < 0 {
		return fmt.Errorf("config.marketplace.max_candidates must be >= 0")
	}
	if c.Marketplace.MaxBounty < 0 {
		return fmt.Errorf("config.marketplace.max_bounty must be >= 0")
	}
	if len(c.Review.AllowedMediaTypes) == 0 {
		return fmt.Errorf("config.review.allowed_media_types is required")
	}
	for _, mt := range c.Review.AllowedMediaTypes {
		if strings.TrimSpace(mt) == "" {
			return fmt.Errorf("config.review.allowed_media_types contains an empty entry")
		}
	}
	if c.Review.MaxScore <= 0 {
		return fmt.Errorf("config.review.max_score must be > 0")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.logging.format must be json or console")
	}
	return nil
}

// AllowsMediaType reports whether the artifact media type is accepted.
func (c *Config) AllowsMediaType(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, mt := range c.Review.AllowedMediaTypes {
		if strings.ToLower(strings.TrimSpace(mt)) == mediaType {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "atelier.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  max_candidates: 20
  max_bounty: 0

review:
  allowed_media_types:
    - video/mp4
    - video/webm
    - video/quicktime
  max_score: 5

notify:
  push_url: ""
  request_timeout_seconds: 10

webhooks: []

logging:
  level: info
  format: console
`
