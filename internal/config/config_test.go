package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Vault:    VaultConfig{Address: "http://vault:8200", MountPath: "secret"},
		Database: DatabaseConfig{Host: "db", Port: 5432, Database: "possync"},
		Graph: GraphConfig{
			LoginHost: "https://login.microsoftonline.com",
			APIHost:   "https://graph.microsoft.com",
		},
		Search: SearchConfig{Addresses: []string{"http://es:9200"}},
		Sync:   SyncConfig{ScoreDays: 90},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing vault address", func(c *Config) { c.Vault.Address = "" }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"missing database name", func(c *Config) { c.Database.Database = "" }},
		{"missing login host", func(c *Config) { c.Graph.LoginHost = "" }},
		{"missing api host", func(c *Config) { c.Graph.APIHost = "" }},
		{"missing search addresses", func(c *Config) { c.Search.Addresses = nil }},
		{"kafka enabled without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"redis enabled without address", func(c *Config) { c.Redis.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateScoreDaysBounds(t *testing.T) {
	for _, days := range []int{0, -5, 91, 365} {
		cfg := validConfig()
		cfg.Sync.ScoreDays = days
		assert.Error(t, cfg.Validate(), "days=%d", days)
	}
	for _, days := range []int{1, 30, 90} {
		cfg := validConfig()
		cfg.Sync.ScoreDays = days
		assert.NoError(t, cfg.Validate(), "days=%d", days)
	}
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "possync", Password: "pw",
		Database: "posture", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db port=5433 user=possync password=pw dbname=posture sslmode=require",
		cfg.GetDSN())
}
