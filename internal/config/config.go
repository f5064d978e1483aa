// Package config loads the tool configuration. Everything an operator
// may need to adjust lives in one YAML file; the PADDOCK_CONFIG
// environment variable points somewhere else for testing.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration is expected on operator
// machines.
const DefaultPath = "/etc/paddock.yaml"

// EnvVar overrides the configuration path when set.
const EnvVar = "PADDOCK_CONFIG"

// Config is the full tool configuration.
type Config struct {
	Inventory InventoryConfig `yaml:"inventory"`
	SSH       SSHConfig       `yaml:"ssh"`
	Provision ProvisionConfig `yaml:"provision"`
}

// InventoryConfig points at the inventory API.
type InventoryConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// SSHConfig carries the management SSH access shared by all hosts.
type SSHConfig struct {
	User           string `yaml:"user"`
	KeyFile        string `yaml:"key_file"`
	Port           int    `yaml:"port"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// ProvisionConfig configures how new guests are built.
type ProvisionConfig struct {
	// ImageURL is the OS image tarball location; "{os}" is replaced
	// with the VM's os attribute.
	ImageURL string `yaml:"image_url"`

	// DNSServers go into every guest's seed network configuration.
	DNSServers []string `yaml:"dns_servers"`

	// SSHKeys are authorized for root on every new guest.
	SSHKeys []string `yaml:"ssh_keys"`

	// RootPasswordHash, if set, is installed as the root password.
	RootPasswordHash string `yaml:"root_password_hash"`
}

// Path returns the configuration file location, honoring EnvVar.
func Path() string {
	if p := os.Getenv(EnvVar); p != "" {
		return p
	}

	return DefaultPath
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		SSH: SSHConfig{
			User:           "root",
			Port:           22,
			ConnectTimeout: 10,
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks for the settings without which no operation can
// work.
func (c *Config) Validate() error {
	if c.Inventory.URL == "" {
		return fmt.Errorf("inventory.url is required")
	}
	if c.SSH.User == "" {
		return fmt.Errorf("ssh.user is required")
	}
	if c.SSH.KeyFile == "" {
		return fmt.Errorf("ssh.key_file is required")
	}
	if c.Provision.ImageURL != "" && !strings.Contains(c.Provision.ImageURL, "{os}") {
		return fmt.Errorf("provision.image_url must contain the {os} placeholder")
	}

	return nil
}

// ImageURLFor resolves the image tarball URL for an OS.
func (c *Config) ImageURLFor(osName string) (string, error) {
	if c.Provision.ImageURL == "" {
		return "", fmt.Errorf("provision.image_url is not configured")
	}
	if osName == "" {
		return "", fmt.Errorf("VM has no os attribute")
	}

	return strings.ReplaceAll(c.Provision.ImageURL, "{os}", osName), nil
}
