package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Portals       PortalsConfig `yaml:"portals"`
	Browser       BrowserConfig `yaml:"browser,omitempty"`
	SettleDelay   time.Duration `yaml:"settle_delay,omitempty"`   // Wait after each page change (fallback: 3s)
	WaitReady     bool          `yaml:"wait_ready,omitempty"`     // Poll for page content instead of a fixed wait
	HalfHourDays  int           `yaml:"half_hour_days,omitempty"` // Days of half-hour data per fetch (fallback: 1)
	HomeAssistant HAConfig      `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig    `yaml:"mqtt,omitempty"`
}

// PortalsConfig holds the login details for each portal
type PortalsConfig struct {
	TEPCO    Credentials `yaml:"tepco,omitempty"`
	TokyoGas Credentials `yaml:"tokyogas,omitempty"`
}

// Credentials is a portal login
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BrowserConfig controls the headless browser
type BrowserConfig struct {
	Visible        bool          `yaml:"visible,omitempty"`
	CommandTimeout time.Duration `yaml:"command_timeout,omitempty"` // Per browser command (fallback: 10s)
	UserAgent      string        `yaml:"user_agent,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool              `yaml:"enabled"`
	URL      string            `yaml:"url"`        // e.g., "http://yourdomain.local:5050"
	Token    string            `yaml:"token"`      // Long-lived access token
	Entities map[string]string `yaml:"entity_ids"` // portal -> entity, e.g. tepco: "sensor.tepco_energy_usage"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: "meterscraper"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetCredentials returns the login for the named portal
func (c *Config) GetCredentials(portal string) (Credentials, error) {
	var creds Credentials
	switch strings.ToLower(portal) {
	case "tepco":
		creds = c.Portals.TEPCO
	case "tokyogas":
		creds = c.Portals.TokyoGas
	default:
		return Credentials{}, fmt.Errorf("unknown portal: %s", portal)
	}

	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("no username/password configured for %s", portal)
	}
	return creds, nil
}

// GetSettleDelay returns the wait after each page change, default 3 seconds
func (c *Config) GetSettleDelay() time.Duration {
	if c.SettleDelay <= 0 {
		return 3 * time.Second
	}
	return c.SettleDelay
}

// GetCommandTimeout returns the per-command browser timeout, default 10 seconds
func (c *Config) GetCommandTimeout() time.Duration {
	if c.Browser.CommandTimeout <= 0 {
		return 10 * time.Second
	}
	return c.Browser.CommandTimeout
}

// GetHalfHourDays returns how many days of half-hour data to fetch, default 1 (today)
func (c *Config) GetHalfHourDays() int {
	if c.HalfHourDays <= 0 {
		return 1
	}
	return c.HalfHourDays
}

// GetTopicPrefix returns the MQTT topic prefix
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "meterscraper"
	}
	return strings.TrimSuffix(c.MQTT.TopicPrefix, "/")
}

// GetEntityID returns the Home Assistant entity for a portal, or "" if not set
func (c *Config) GetEntityID(portal string) string {
	return c.HomeAssistant.Entities[strings.ToLower(portal)]
}
