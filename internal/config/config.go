// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Health    HealthConfig    `mapstructure:"health"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	AirSwap   AirSwapConfig   `mapstructure:"airswap"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds the quote HTTP API settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HealthConfig holds the health check server settings.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// QuotesConfig controls aggregation.
type QuotesConfig struct {
	SourceTimeout  time.Duration      `mapstructure:"source_timeout"`
	MaxConcurrency int                `mapstructure:"max_concurrency"`
	Fees           map[string]float64 `mapstructure:"fees"`
	Enabled        []string           `mapstructure:"enabled"`
	// RequestsPerMinute caps calls to each REST venue.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// FeesDecimal returns the fee table keyed by lower-cased venue name.
func (c *QuotesConfig) FeesDecimal() map[string]decimal.Decimal {
	fees := make(map[string]decimal.Decimal, len(c.Fees))
	for venue, f := range c.Fees {
		fees[strings.ToLower(venue)] = decimal.NewFromFloat(f)
	}
	return fees
}

// IsEnabled reports whether a venue should be registered. An empty list enables all.
func (c *QuotesConfig) IsEnabled(venue string) bool {
	if len(c.Enabled) == 0 {
		return true
	}
	for _, v := range c.Enabled {
		if strings.EqualFold(v, venue) {
			return true
		}
	}
	return false
}

// VenuesConfig holds REST base URLs.
type VenuesConfig struct {
	Ethfinex    string `mapstructure:"ethfinex"`
	DDEX        string `mapstructure:"ddex"`
	Switcheo    string `mapstructure:"switcheo"`
	RadarRelay  string `mapstructure:"radar_relay"`
	BambooRelay string `mapstructure:"bamboo_relay"`
	IDEX        string `mapstructure:"idex"`
	Kyber       string `mapstructure:"kyber"`
	Bancor      string `mapstructure:"bancor"`
	Saturn      string `mapstructure:"saturn"`
}

func (c *VenuesConfig) all() map[string]string {
	return map[string]string{
		"venues.ethfinex":     c.Ethfinex,
		"venues.ddex":         c.DDEX,
		"venues.switcheo":     c.Switcheo,
		"venues.radar_relay":  c.RadarRelay,
		"venues.bamboo_relay": c.BambooRelay,
		"venues.idex":         c.IDEX,
		"venues.kyber":        c.Kyber,
		"venues.bancor":       c.Bancor,
		"venues.saturn":       c.Saturn,
	}
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	HTTPURL        string `mapstructure:"http_url"`
	UniswapFactory string `mapstructure:"uniswap_factory"`
}

// UniswapFactoryHex returns the Uniswap v1 factory as common.Address.
func (c *EthereumConfig) UniswapFactoryHex() common.Address {
	return common.HexToAddress(c.UniswapFactory)
}

// AirSwapConfig holds the peer network settings.
type AirSwapConfig struct {
	SocketURL         string        `mapstructure:"socket_url"`
	MetadataURL       string        `mapstructure:"metadata_url"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	Reconnect         bool          `mapstructure:"reconnect"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	// PrivateKey is a hex secp256k1 key. Empty means a throwaway key is generated.
	PrivateKey string `mapstructure:"private_key"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DEX_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEX_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEX_LOG_LEVEL", "LOG_LEVEL")

	// Server
	v.BindEnv("server.port", "DEX_PORT", "PORT")

	// Ethereum
	v.BindEnv("ethereum.http_url", "DEX_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.uniswap_factory", "DEX_UNISWAP_FACTORY")

	// AirSwap
	v.BindEnv("airswap.socket_url", "DEX_AIRSWAP_SOCKET_URL")
	v.BindEnv("airswap.private_key", "DEX_AIRSWAP_PRIVATE_KEY", "AIRSWAP_PRIVATE_KEY")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEX_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEX_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DEX_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dex-prices")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Server defaults
	v.SetDefault("server.port", 1337)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("health.port", 8081)

	// Quote defaults
	v.SetDefault("quotes.source_timeout", "10s")
	v.SetDefault("quotes.max_concurrency", 16)
	v.SetDefault("quotes.fees", map[string]float64{"ddex": 0.003})
	v.SetDefault("quotes.requests_per_minute", 120)

	// Venue defaults
	v.SetDefault("venues.ethfinex", "https://api.ethfinex.com/v1")
	v.SetDefault("venues.ddex", "https://api.ddex.io/v3")
	v.SetDefault("venues.switcheo", "https://api.switcheo.network")
	v.SetDefault("venues.radar_relay", "https://api.radarrelay.com/v2")
	v.SetDefault("venues.bamboo_relay", "https://rest.bamboorelay.com/main/0x")
	v.SetDefault("venues.idex", "https://api.idex.market")
	v.SetDefault("venues.kyber", "https://api.kyber.network")
	v.SetDefault("venues.bancor", "https://api.bancor.network/0.1")
	v.SetDefault("venues.saturn", "https://ticker.saturn.network/api/v2")

	// Uniswap v1 mainnet factory
	v.SetDefault("ethereum.uniswap_factory", "0xc0a47dFe034B400B47bDaD5FecDa2621de6c4d95")

	// AirSwap defaults
	v.SetDefault("airswap.socket_url", "wss://connect.airswap-api.com/websocket")
	v.SetDefault("airswap.metadata_url", "https://token-metadata.production.airswap.io/tokens")
	v.SetDefault("airswap.call_timeout", "6s")
	v.SetDefault("airswap.keepalive_interval", "30s")
	v.SetDefault("airswap.reconnect", true)
	v.SetDefault("airswap.reconnect_delay", "10s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.service_name", "dex-prices")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for key, raw := range c.Venues.all() {
		if err := validateURL(key, raw, "http", "https"); err != nil {
			return err
		}
	}
	if c.Ethereum.HTTPURL != "" {
		if err := validateURL("ethereum.http_url", c.Ethereum.HTTPURL, "http", "https", "ws", "wss"); err != nil {
			return err
		}
	}
	if !common.IsHexAddress(c.Ethereum.UniswapFactory) {
		return fmt.Errorf("invalid ethereum.uniswap_factory: %s", c.Ethereum.UniswapFactory)
	}
	if err := validateURL("airswap.socket_url", c.AirSwap.SocketURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("airswap.metadata_url", c.AirSwap.MetadataURL, "http", "https"); err != nil {
		return err
	}
	if c.AirSwap.CallTimeout <= 0 {
		return fmt.Errorf("airswap.call_timeout must be positive")
	}
	if c.AirSwap.KeepAliveInterval <= 0 {
		return fmt.Errorf("airswap.keepalive_interval must be positive")
	}
	if c.AirSwap.Reconnect && c.AirSwap.ReconnectDelay <= 0 {
		return fmt.Errorf("airswap.reconnect_delay must be positive when reconnect is on")
	}
	if c.Quotes.SourceTimeout <= 0 {
		return fmt.Errorf("quotes.source_timeout must be positive")
	}
	if c.Quotes.MaxConcurrency <= 0 {
		return fmt.Errorf("quotes.max_concurrency must be positive")
	}
	for venue, fee := range c.Quotes.Fees {
		if fee < 0 || fee >= 1 {
			return fmt.Errorf("quotes.fees.%s must be in [0,1): %v", venue, fee)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	return nil
}

func validateURL(key, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: scheme %q not in %v", key, u.Scheme, schemes)
}
