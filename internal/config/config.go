// Package config loads application configuration and bootstraps logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Sweep      SweepConfig      `yaml:"sweep" mapstructure:"sweep"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Delivery   DeliveryConfig   `yaml:"delivery" mapstructure:"delivery"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SweepConfig configures ingestion sweeps.
type SweepConfig struct {
	Categories         []string `yaml:"categories" mapstructure:"categories"`
	IntervalSecs       int      `yaml:"interval_secs" mapstructure:"interval_secs"`
	AdapterTimeoutSecs int      `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	MaxPerFetch        int      `yaml:"max_per_fetch" mapstructure:"max_per_fetch"`
}

// SourcesConfig tunes the marketplace adapters.
type SourcesConfig struct {
	Disabled  []string `yaml:"disabled" mapstructure:"disabled"`
	UserAgent string   `yaml:"user_agent" mapstructure:"user_agent"`
	HHArea    int      `yaml:"hh_area" mapstructure:"hh_area"` // hh.ru region id, 113 = Russia
}

// ScoringConfig configures the risk scorer.
type ScoringConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"` // optional YAML rule override
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DeliveryConfig configures the outbound alert relay. When the webhook URL
// is empty, sweeps store listings without notifying anyone.
type DeliveryConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// MonitoringConfig configures sweep health alerting.
type MonitoringConfig struct {
	WebhookURL       string `yaml:"webhook_url" mapstructure:"webhook_url"`
	DeadSourceSweeps int    `yaml:"dead_source_sweeps" mapstructure:"dead_source_sweeps"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from radar.yaml (optional) and RADAR_* environment
// variables, applying defaults for everything else.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("radar")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "radar.db")
	v.SetDefault("sweep.categories", []string{"design", "programming", "copywriting", "marketing"})
	v.SetDefault("sweep.interval_secs", 60)
	v.SetDefault("sweep.adapter_timeout_secs", 20)
	v.SetDefault("sweep.max_per_fetch", 20)
	v.SetDefault("sources.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("sources.hh_area", 113)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.dead_source_sweeps", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
