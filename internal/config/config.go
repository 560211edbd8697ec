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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Dealabs DealabsConfig `yaml:"dealabs" mapstructure:"dealabs"`
	Vinted  VintedConfig  `yaml:"vinted" mapstructure:"vinted"`
	Scorer  ScorerConfig  `yaml:"scorer" mapstructure:"scorer"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// DealabsConfig configures the deal-source crawler.
type DealabsConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SearchQuery string `yaml:"search_query" mapstructure:"search_query"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Cookie      string `yaml:"cookie" mapstructure:"cookie"`
}

// VintedConfig configures the resale-source crawler.
type VintedConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	BrandID     string `yaml:"brand_id" mapstructure:"brand_id"`
	DelayMs     int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	BrowserBin  string `yaml:"browser_bin" mapstructure:"browser_bin"`
	// Cookie bypasses the headless-browser session step when set.
	Cookie string `yaml:"cookie" mapstructure:"cookie"`
}

// ScorerConfig holds relevance weights and saturation constants.
type ScorerConfig struct {
	DiscountWeight     float64 `yaml:"discount_weight" mapstructure:"discount_weight"`
	PopularityWeight   float64 `yaml:"popularity_weight" mapstructure:"popularity_weight"`
	FreshnessWeight    float64 `yaml:"freshness_weight" mapstructure:"freshness_weight"`
	ExpiryWeight       float64 `yaml:"expiry_weight" mapstructure:"expiry_weight"`
	HeatWeight         float64 `yaml:"heat_weight" mapstructure:"heat_weight"`
	ResalabilityWeight float64 `yaml:"resalability_weight" mapstructure:"resalability_weight"`

	ProfitabilityWeight float64 `yaml:"profitability_weight" mapstructure:"profitability_weight"`
	DemandWeight        float64 `yaml:"demand_weight" mapstructure:"demand_weight"`
	VelocityWeight      float64 `yaml:"velocity_weight" mapstructure:"velocity_weight"`

	MaxComments    int     `yaml:"max_comments" mapstructure:"max_comments"`
	MaxAgeDays     float64 `yaml:"max_age_days" mapstructure:"max_age_days"`
	MaxTemperature float64 `yaml:"max_temperature" mapstructure:"max_temperature"`
	MaxListings    int     `yaml:"max_listings" mapstructure:"max_listings"`
	MaxWeeklySales int     `yaml:"max_weekly_sales" mapstructure:"max_weekly_sales"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("BRICKSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "brickscout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8092)
	v.SetDefault("dealabs.base_url", "https://www.dealabs.com")
	v.SetDefault("dealabs.search_query", "lego")
	v.SetDefault("dealabs.max_pages", 20)
	v.SetDefault("dealabs.timeout_secs", 30)
	v.SetDefault("vinted.base_url", "https://www.vinted.fr")
	v.SetDefault("vinted.brand_id", "89162")
	v.SetDefault("vinted.delay_ms", 1500)
	v.SetDefault("vinted.timeout_secs", 30)
	v.SetDefault("vinted.headless", true)
	v.SetDefault("scorer.discount_weight", 0.2)
	v.SetDefault("scorer.popularity_weight", 0.2)
	v.SetDefault("scorer.freshness_weight", 0.15)
	v.SetDefault("scorer.expiry_weight", 0.05)
	v.SetDefault("scorer.heat_weight", 0.1)
	v.SetDefault("scorer.resalability_weight", 0.3)
	v.SetDefault("scorer.profitability_weight", 0.5)
	v.SetDefault("scorer.demand_weight", 0.3)
	v.SetDefault("scorer.velocity_weight", 0.2)
	v.SetDefault("scorer.max_comments", 100)
	v.SetDefault("scorer.max_age_days", 30.0)
	v.SetDefault("scorer.max_temperature", 500.0)
	v.SetDefault("scorer.max_listings", 50)
	v.SetDefault("scorer.max_weekly_sales", 10)

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
