package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models caseline.yml.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Approvals struct {
		// FinalApproverRole is the default for the dynamic global setting; the
		// settings store overrides it at runtime.
		FinalApproverRole string `yaml:"final_approver_role"`
		// StageRoles maps stage identifiers to extra roles allowed to approve,
		// on top of the built-in decision table.
		StageRoles map[string][]string `yaml:"stage_roles"`
	} `yaml:"approvals"`
	Generation struct {
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Currency       string `yaml:"currency"`
		RateCard       map[string]float64 `yaml:"rate_card"`
	} `yaml:"generation"`
}

// GenerationTimeout returns the per-call generation timeout.
func (c *Config) GenerationTimeout() time.Duration {
	if c == nil || c.Generation.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	if c.Approvals.FinalApproverRole == "" {
		return fmt.Errorf("config.approvals.final_approver_role is required")
	}
	for stageID, roles := range c.Approvals.StageRoles {
		if stageID == "" {
			return fmt.Errorf("config.approvals.stage_roles contains empty stage id")
		}
		for _, r := range roles {
			if r == "" {
				return fmt.Errorf("stage %s has empty role id", stageID)
			}
		}
	}
	if c.Generation.TimeoutSeconds < 0 {
		return fmt.Errorf("config.generation.timeout_seconds must not be negative")
	}
	for role, rate := range c.Generation.RateCard {
		if role == "" {
			return fmt.Errorf("config.generation.rate_card contains empty role")
		}
		if rate <= 0 {
			return fmt.Errorf("rate for role %s must be positive", role)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "caseline.yml")
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cl config init", path)
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

// Default returns the default Config struct for a service.
func Default(serviceName string) *Config {
	var cfg Config
	cfg.Service.Name = serviceName
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, serviceName))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(serviceName string) string {
	return fmt.Sprintf(defaultTemplate, serviceName)
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

const defaultTemplate = `service:
  name: %s

approvals:
  final_approver_role: FINAL_APPROVER
  stage_roles:
    system_design: [DEVELOPER, TECHNICAL_ARCHITECT]
    cost_estimate: [FINANCE_APPROVER]
    value_projection: [SALES_MANAGER_APPROVER]
    financial_model: [FINANCE_APPROVER]

generation:
  timeout_seconds: 60
  currency: USD
  rate_card:
    "Product Manager": 120
    "Lead Developer": 140
    "Senior Developer": 110
    "Developer": 90
    "QA Engineer": 75
    "DevOps Engineer": 115
    "UI/UX Designer": 95
`
