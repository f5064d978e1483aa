package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "paddock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
inventory:
  url: https://inventory.example.net
  token: sekrit
ssh:
  user: paddock
  key_file: /etc/paddock/id_ed25519
provision:
  image_url: https://images.example.net/{os}.tar.gz
  dns_servers: [10.0.0.53]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://inventory.example.net", cfg.Inventory.URL)
	assert.Equal(t, "paddock", cfg.SSH.User)
	assert.Equal(t, 22, cfg.SSH.Port, "default port kept when unset")
	assert.Equal(t, 10, cfg.SSH.ConnectTimeout)
	assert.Equal(t, []string{"10.0.0.53"}, cfg.Provision.DNSServers)

	url, err := cfg.ImageURLFor("bookworm")
	require.NoError(t, err)
	assert.Equal(t, "https://images.example.net/bookworm.tar.gz", url)
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing inventory URL",
			"ssh: {user: paddock, key_file: /k}",
			"inventory.url",
		},
		{
			"missing key file",
			"inventory: {url: https://inv}\nssh: {user: paddock}",
			"ssh.key_file",
		},
		{
			"image URL without placeholder",
			"inventory: {url: https://inv}\nssh: {user: p, key_file: /k}\nprovision: {image_url: https://images/fixed.tar.gz}",
			"{os}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(EnvVar, "/tmp/other.yaml")
	assert.Equal(t, "/tmp/other.yaml", Path())

	t.Setenv(EnvVar, "")
	assert.Equal(t, DefaultPath, Path())
}

func TestImageURLForRequiresConfiguration(t *testing.T) {
	cfg := &Config{}

	_, err := cfg.ImageURLFor("bookworm")
	assert.Error(t, err)

	cfg.Provision.ImageURL = "https://images.example.net/{os}.tar.gz"
	_, err = cfg.ImageURLFor("")
	assert.Error(t, err)
}
