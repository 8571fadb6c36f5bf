package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// ScoreWeights are the factor weights of the refund match scorer.
// They must sum to 1.
type ScoreWeights struct {
	Merchant  float64 `mapstructure:"merchant"`
	Amount    float64 `mapstructure:"amount"`
	Time      float64 `mapstructure:"time"`
	Reference float64 `mapstructure:"reference"`
}

// ReconcileConfig holds every tunable of the split/refund engine so
// matching behavior can be changed per deployment without a rebuild.
type ReconcileConfig struct {
	Tolerance            string       `mapstructure:"tolerance"` // decimal string, e.g. "0.01"
	SplitMinCount        int          `mapstructure:"split_min_count"`
	SplitMaxCount        int          `mapstructure:"split_max_count"`
	LookbackDays         int          `mapstructure:"lookback_days"`
	SameDayWindowHours   int          `mapstructure:"same_day_window_hours"`
	MaxAmountRatio       float64      `mapstructure:"max_amount_ratio"`
	DefaultMinConfidence int          `mapstructure:"default_min_confidence"`
	MaxSuggestions       int          `mapstructure:"max_suggestions"`
	Weights              ScoreWeights `mapstructure:"weights"`
}

type AppSubConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	App       AppSubConfig    `mapstructure:"app"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. FB_SERVER_PORT=9000
		v.SetEnvPrefix("FB")
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("read config: %w", err)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reconcile.tolerance", "0.01")
	v.SetDefault("reconcile.split_min_count", 2)
	v.SetDefault("reconcile.split_max_count", 50)
	v.SetDefault("reconcile.lookback_days", 90)
	v.SetDefault("reconcile.same_day_window_hours", 24)
	v.SetDefault("reconcile.max_amount_ratio", 0.5)
	v.SetDefault("reconcile.default_min_confidence", 50)
	v.SetDefault("reconcile.max_suggestions", 100)
	v.SetDefault("reconcile.weights.merchant", 0.35)
	v.SetDefault("reconcile.weights.amount", 0.35)
	v.SetDefault("reconcile.weights.time", 0.20)
	v.SetDefault("reconcile.weights.reference", 0.10)
	v.SetDefault("app.page_size", 20)
}
