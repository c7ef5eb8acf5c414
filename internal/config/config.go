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
	API    APIConfig    `yaml:"api" mapstructure:"api"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the FDOT FeatureServer client.
type APIConfig struct {
	// BaseURL is the full query endpoint of the work program layer.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// PageSize is the number of records requested per call.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// TimeoutSecs bounds each page request.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// RequestsPerSec paces page requests against the public endpoint.
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	// County is the default CONTYNAM filter value.
	County    string `yaml:"county" mapstructure:"county"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// OutputConfig configures the GeoPackage destination.
type OutputConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Layer string `yaml:"layer" mapstructure:"layer"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WORKPROGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults mirror the FDOT Work Program Current layer 2 contract.
	v.SetDefault("api.base_url", "https://gis.fdot.gov/arcgis/rest/services/Work_Program_Current/FeatureServer/2/query")
	v.SetDefault("api.page_size", 2000)
	v.SetDefault("api.timeout_secs", 60)
	v.SetDefault("api.requests_per_sec", 4.0)
	v.SetDefault("api.county", "MIAMI-DADE")
	v.SetDefault("api.user_agent", "workprogram/1.0")
	v.SetDefault("output.path", "data/processed/fdot_work_program_construction.gpkg")
	v.SetDefault("output.layer", "work_program_construction")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks that the loaded configuration can drive an ingest run.
func (c *Config) Validate() error {
	var problems []string

	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is required")
	}
	if c.API.PageSize <= 0 {
		problems = append(problems, "api.page_size must be > 0")
	}
	if c.API.TimeoutSecs <= 0 {
		problems = append(problems, "api.timeout_secs must be > 0")
	}
	if c.Output.Path == "" {
		problems = append(problems, "output.path is required")
	}
	if c.Output.Layer == "" {
		problems = append(problems, "output.layer is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
