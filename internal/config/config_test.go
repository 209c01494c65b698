package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 1337 {
		t.Errorf("expected port 1337, got %d", cfg.Server.Port)
	}
	if cfg.AirSwap.CallTimeout != 6*time.Second {
		t.Errorf("expected 6s call timeout, got %v", cfg.AirSwap.CallTimeout)
	}
	if cfg.AirSwap.ReconnectDelay != 10*time.Second {
		t.Errorf("expected 10s reconnect delay, got %v", cfg.AirSwap.ReconnectDelay)
	}
	fee := cfg.Quotes.FeesDecimal()["ddex"]
	if !fee.Equal(decimal.RequireFromString("0.003")) {
		t.Errorf("expected DDEX fee 0.003, got %s", fee)
	}
	if cfg.Venues.Saturn == "" {
		t.Error("expected a default Saturn Network URL")
	}
	if !cfg.Quotes.IsEnabled("Kyber") {
		t.Error("expected all venues enabled by default")
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Join([]string{
		"quotes:",
		"  enabled: [ddex, uniswap]",
		"  fees:",
		"    ddex: 0.001",
		"airswap:",
		"  reconnect: false",
	}, "\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Quotes.IsEnabled("kyber") {
		t.Error("expected kyber to be disabled")
	}
	if !cfg.Quotes.IsEnabled("DDEX") {
		t.Error("expected DDEX to match case-insensitively")
	}
	if cfg.AirSwap.Reconnect {
		t.Error("expected reconnect off")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"fee out of range", func(c *Config) { c.Quotes.Fees = map[string]float64{"ddex": 1} }, "quotes.fees.ddex"},
		{"bad socket scheme", func(c *Config) { c.AirSwap.SocketURL = "https://example.com" }, "airswap.socket_url"},
		{"missing venue", func(c *Config) { c.Venues.Kyber = "" }, "venues.kyber is required"},
		{"zero timeout", func(c *Config) { c.Quotes.SourceTimeout = 0 }, "quotes.source_timeout"},
		{"bad factory", func(c *Config) { c.Ethereum.UniswapFactory = "nope" }, "uniswap_factory"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
