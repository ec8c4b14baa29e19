// Package config loads the bot configuration from environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AssetConfig drives one accumulated asset: which pair to trade, which
// balance asset code it corresponds to, and the signal thresholds.
type AssetConfig struct {
	Pair         string  `mapstructure:"pair"`
	Asset        string  `mapstructure:"asset"`
	RSIThreshold float64 `mapstructure:"rsi_threshold"`
	SMAWindow    int     `mapstructure:"sma_window"`
	AmountEUR    float64 `mapstructure:"amount_eur"`
}

// Config is the full bot configuration.
type Config struct {
	Environment      string        `mapstructure:"environment"`
	APIKey           string        `mapstructure:"apikey"`
	APISecret        string        `mapstructure:"apisecret"`
	Port             int           `mapstructure:"port"`
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`
	Assets           []AssetConfig `mapstructure:"assets"`
}

// IsProduction reports whether orders may actually be sent.
func (c *Config) IsProduction() bool { return c.Environment == "PROD" }

// BalancePair returns the quote pair used to price a balance asset code,
// e.g. XXBT -> XXBTZEUR.
func (c *Config) BalancePair(assetCode string) (string, bool) {
	for _, a := range c.Assets {
		if a.Asset == assetCode {
			return a.Pair, true
		}
	}
	return "", false
}

// Load reads the configuration. A config file path may be given; otherwise
// cb0t.yaml in the working directory is used when present. Environment
// variables CB0TENV, KRAKENAPIKEY and KRAKENAPISECRET override.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "DEV")
	v.SetDefault("port", 8080)
	v.SetDefault("schedule_interval", 24*time.Hour)
	v.SetDefault("assets", []map[string]any{
		{"pair": "XXBTZEUR", "asset": "XXBT", "rsi_threshold": 40.0, "sma_window": 200, "amount_eur": 8.0},
		{"pair": "XETHZEUR", "asset": "XETH", "rsi_threshold": 35.0, "sma_window": 200, "amount_eur": 8.0},
		{"pair": "SOLEUR", "asset": "SOL", "rsi_threshold": 35.0, "sma_window": 200, "amount_eur": 0.0},
		{"pair": "PAXGEUR", "asset": "PAXG", "rsi_threshold": 35.0, "sma_window": 200, "amount_eur": 0.0},
	})

	if err := v.BindEnv("environment", "CB0TENV"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("apikey", "KRAKENAPIKEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("apisecret", "KRAKENAPISECRET"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("cb0t")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
