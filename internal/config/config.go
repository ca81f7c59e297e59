package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models ohv.yml.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"project"`
	Defaults struct {
		HandoverType string `yaml:"handover_type"`
	} `yaml:"defaults"`
	Approvals struct {
		ElevatedRoles []string `yaml:"elevated_roles"`
	} `yaml:"approvals"`
	Storage struct {
		MaxFileSizeMB int    `yaml:"max_file_size_mb"`
		BaseURL       string `yaml:"base_url"`
	} `yaml:"storage"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

var knownTypes = map[string]struct{}{"cloud": {}, "product": {}, "legacy": {}, "human": {}}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ohv config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.Project.Kind != "handover-register" {
		return fmt.Errorf("config.project.kind must be 'handover-register'")
	}
	if c.Defaults.HandoverType != "" {
		if _, ok := knownTypes[c.Defaults.HandoverType]; !ok {
			return fmt.Errorf("config.defaults.handover_type %s is not a known type", c.Defaults.HandoverType)
		}
	}
	for _, role := range c.Approvals.ElevatedRoles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("config.approvals.elevated_roles contains an empty role")
		}
	}
	if c.Storage.MaxFileSizeMB < 0 {
		return fmt.Errorf("config.storage.max_file_size_mb must not be negative")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
		if !strings.HasPrefix(hook.URL, "http://") && !strings.HasPrefix(hook.URL, "https://") {
			return fmt.Errorf("webhook %d url must be http or https", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "ohv.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
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

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	cfg.Project.Kind = "handover-register"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	return &cfg
}

// ElevatedRoles returns the configured elevated approver roles, falling back
// to the builtin set.
func (c *Config) ElevatedRoles(fallback []string) []string {
	if c == nil || len(c.Approvals.ElevatedRoles) == 0 {
		return fallback
	}
	return c.Approvals.ElevatedRoles
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

const defaultTemplate = `project:
  id: %s
  kind: handover-register

defaults:
  handover_type: cloud

approvals:
  elevated_roles: [admin, audit, compliance, security]

storage:
  max_file_size_mb: 10
  base_url: /files
`
