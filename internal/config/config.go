package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Prediction PredictionConfig `yaml:"prediction" mapstructure:"prediction"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Summary    SummaryConfig    `yaml:"summary" mapstructure:"summary"`
	Regions    RegionsConfig    `yaml:"regions" mapstructure:"regions"`
	Importance ImportanceConfig `yaml:"importance" mapstructure:"importance"`
	Models     []string         `yaml:"models" mapstructure:"models"`
	Years      YearsConfig      `yaml:"years" mapstructure:"years"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PredictionConfig configures the upstream prediction service client.
type PredictionConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Token            string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// EnrichConfig configures the per-region fan-out.
type EnrichConfig struct {
	MaxConcurrency    int  `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	RegionTimeoutSecs int  `yaml:"region_timeout_secs" mapstructure:"region_timeout_secs"`
	RetryTransient    bool `yaml:"retry_transient" mapstructure:"retry_transient"`
	BreakerEnabled    bool `yaml:"breaker_enabled" mapstructure:"breaker_enabled"`
}

// RegionTimeout returns the per-region query timeout.
func (c EnrichConfig) RegionTimeout() time.Duration {
	return time.Duration(c.RegionTimeoutSecs) * time.Second
}

// SummaryConfig configures dashboard aggregation.
type SummaryConfig struct {
	IncludeNoData bool   `yaml:"include_no_data" mapstructure:"include_no_data"`
	Metric        string `yaml:"metric" mapstructure:"metric"`
}

// RegionsConfig locates the static geometry and the synonym table.
type RegionsConfig struct {
	GeometryPath string `yaml:"geometry_path" mapstructure:"geometry_path"`
	NameProperty string `yaml:"name_property" mapstructure:"name_property"`
	SynonymsPath string `yaml:"synonyms_path" mapstructure:"synonyms_path"`
}

// ImportanceConfig configures feature-importance ranking.
type ImportanceConfig struct {
	DefaultTopN int `yaml:"default_top_n" mapstructure:"default_top_n"`
}

// YearsConfig bounds the years the dashboard accepts.
type YearsConfig struct {
	Min int `yaml:"min" mapstructure:"min"`
	Max int `yaml:"max" mapstructure:"max"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from path, or from ./config.yaml when path is
// empty, and overlays RISKMAP_* environment variables. An explicit path must
// exist; the default file is optional.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RISKMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("prediction.base_url", "http://localhost:8000")
	v.SetDefault("prediction.token", "")
	v.SetDefault("prediction.timeout_secs", 15)
	v.SetDefault("prediction.rate_limit", 20.0)
	v.SetDefault("prediction.max_attempts", 2)
	v.SetDefault("prediction.initial_backoff_ms", 250)
	v.SetDefault("prediction.max_backoff_ms", 2000)
	v.SetDefault("prediction.breaker_threshold", 5)
	v.SetDefault("prediction.breaker_reset_secs", 30)
	v.SetDefault("enrich.max_concurrency", 8)
	v.SetDefault("enrich.region_timeout_secs", 10)
	v.SetDefault("enrich.retry_transient", true)
	v.SetDefault("enrich.breaker_enabled", false)
	v.SetDefault("summary.include_no_data", true)
	v.SetDefault("summary.metric", "Rent")
	v.SetDefault("regions.geometry_path", "data/nairobi_subcounties.geojson")
	v.SetDefault("regions.name_property", "shapeName")
	v.SetDefault("regions.synonyms_path", "")
	v.SetDefault("importance.default_top_n", 5)
	v.SetDefault("models", []string{"rf", "xgb", "mlp"})
	v.SetDefault("years.min", 2019)
	v.SetDefault("years.max", 2023)
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

// Validate checks that the fields required by the given run mode are set.
// Modes: "serve" (HTTP API) and "batch" (one-shot CLI commands).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "batch":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Prediction.BaseURL == "" {
		errs = append(errs, "prediction.base_url is required")
	}
	if c.Enrich.MaxConcurrency < 1 || c.Enrich.MaxConcurrency > 64 {
		errs = append(errs, "enrich.max_concurrency must be between 1 and 64")
	}
	if c.Enrich.RegionTimeoutSecs <= 0 {
		errs = append(errs, "enrich.region_timeout_secs must be > 0")
	}
	if len(c.Models) == 0 {
		errs = append(errs, "models must list at least one model id")
	}
	if c.Years.Min > c.Years.Max {
		errs = append(errs, "years.min must be <= years.max")
	}
	if c.Importance.DefaultTopN < 0 {
		errs = append(errs, "importance.default_top_n must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
