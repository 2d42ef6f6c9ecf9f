package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Quotes   Quotes   `mapstructure:"quotes"`
	Trading  Trading  `mapstructure:"trading"`
	Market   Market   `mapstructure:"market"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Provider holds the configuration for a single quote provider.
type Provider struct {
	ApiKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Quotes holds the configuration for the quote source adapters.
type Quotes struct {
	Finnhub         Provider `mapstructure:"finnhub"`
	AlphaVantage    Provider `mapstructure:"alphavantage"`
	CacheTTLSeconds int      `mapstructure:"cache_ttl_seconds"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
}

// AssetSeed describes one tradable asset to populate at startup.
type AssetSeed struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Exchange string `mapstructure:"exchange"`
	Currency string `mapstructure:"currency"`
	Type     string `mapstructure:"type"`
	LogoURL  string `mapstructure:"logo_url"`
}

// Trading holds the configuration for the simulated trading core.
type Trading struct {
	StartingBalance float64     `mapstructure:"starting_balance"`
	SweepSchedule   string      `mapstructure:"sweep_schedule"`
	Assets          []AssetSeed `mapstructure:"assets"`
}

// Market holds the configuration for the market-hours clock.
type Market struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("trading.starting_balance", 100000)
	viper.SetDefault("trading.sweep_schedule", "@every 5m")
	viper.SetDefault("quotes.finnhub.base_url", "https://finnhub.io/api/v1")
	viper.SetDefault("quotes.finnhub.rate_limit", 1) // requests per second
	viper.SetDefault("quotes.finnhub.rate_limit_burst", 5)
	viper.SetDefault("quotes.alphavantage.base_url", "https://www.alphavantage.co")
	viper.SetDefault("quotes.alphavantage.rate_limit", 0.5)
	viper.SetDefault("quotes.alphavantage.rate_limit_burst", 2)
	viper.SetDefault("quotes.cache_ttl_seconds", 60)
	viper.SetDefault("quotes.timeout_seconds", 10)
	viper.SetDefault("market.timezone", "America/New_York")
	viper.SetDefault("market.open", "09:30")
	viper.SetDefault("market.close", "16:00")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
