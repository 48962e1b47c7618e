// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	RFM     RFMConfig     `yaml:"rfm" mapstructure:"rfm"`
	Cluster ClusterConfig `yaml:"cluster" mapstructure:"cluster"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig maps source columns to transaction fields and controls parsing.
type InputConfig struct {
	CustomerIDColumn string   `yaml:"customer_id_column" mapstructure:"customer_id_column"`
	DateColumn       string   `yaml:"date_column" mapstructure:"date_column"`
	AmountColumn     string   `yaml:"amount_column" mapstructure:"amount_column"`
	BalanceColumn    string   `yaml:"balance_column" mapstructure:"balance_column"`
	GenderColumn     string   `yaml:"gender_column" mapstructure:"gender_column"`
	AgeColumn        string   `yaml:"age_column" mapstructure:"age_column"`
	DateLayouts      []string `yaml:"date_layouts" mapstructure:"date_layouts"`
	SheetName        string   `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// RFMConfig configures aggregation and scoring behavior.
type RFMConfig struct {
	GenderPositive string `yaml:"gender_positive" mapstructure:"gender_positive"`
	StrictDates    bool   `yaml:"strict_dates" mapstructure:"strict_dates"`
	AgePolicy      string `yaml:"age_policy" mapstructure:"age_policy"` // impute_median or drop
}

// ClusterConfig configures the k-means estimator.
type ClusterConfig struct {
	K             int   `yaml:"k" mapstructure:"k"`
	Seed          int64 `yaml:"seed" mapstructure:"seed"`
	ElbowSample   int   `yaml:"elbow_sample" mapstructure:"elbow_sample"`
	ElbowMaxK     int   `yaml:"elbow_max_k" mapstructure:"elbow_max_k"`
	SeedSample    int   `yaml:"seed_sample" mapstructure:"seed_sample"`
	Restarts      int   `yaml:"restarts" mapstructure:"restarts"`
	MaxIter       int   `yaml:"max_iter" mapstructure:"max_iter"`
	RefineMaxIter int   `yaml:"refine_max_iter" mapstructure:"refine_max_iter"`
	Workers       int   `yaml:"workers" mapstructure:"workers"`
	StrictEmpty   bool  `yaml:"strict_empty" mapstructure:"strict_empty"`
}

// StoreConfig configures the optional results database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
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
	v.SetEnvPrefix("SEGMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.customer_id_column", "CustomerID")
	v.SetDefault("input.date_column", "TransactionDate")
	v.SetDefault("input.amount_column", "TransactionAmount")
	v.SetDefault("input.balance_column", "AccountBalance")
	v.SetDefault("input.gender_column", "CustGender")
	v.SetDefault("input.age_column", "CustomerAge")
	v.SetDefault("input.date_layouts", []string{"2006-01-02", "2/1/06", "1/2/2006"})
	v.SetDefault("rfm.gender_positive", "M")
	v.SetDefault("rfm.strict_dates", false)
	v.SetDefault("rfm.age_policy", "impute_median")
	v.SetDefault("cluster.k", 4)
	v.SetDefault("cluster.seed", 42)
	v.SetDefault("cluster.elbow_sample", 10000)
	v.SetDefault("cluster.elbow_max_k", 10)
	v.SetDefault("cluster.seed_sample", 500000)
	v.SetDefault("cluster.restarts", 25)
	v.SetDefault("cluster.max_iter", 100)
	v.SetDefault("cluster.refine_max_iter", 25)
	v.SetDefault("cluster.workers", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "segment.db")
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

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Cluster.K < 1 {
		return eris.Errorf("config: cluster.k must be >= 1 (got %d)", c.Cluster.K)
	}
	if c.Cluster.Restarts < 1 {
		return eris.Errorf("config: cluster.restarts must be >= 1 (got %d)", c.Cluster.Restarts)
	}
	if c.Cluster.MaxIter < 1 || c.Cluster.RefineMaxIter < 1 {
		return eris.New("config: iteration caps must be >= 1")
	}
	if c.Cluster.ElbowSample < 1 || c.Cluster.SeedSample < 1 {
		return eris.New("config: sample sizes must be >= 1")
	}
	if c.Cluster.SeedSample < c.Cluster.K {
		return eris.Errorf("config: cluster.seed_sample (%d) must be >= cluster.k (%d)", c.Cluster.SeedSample, c.Cluster.K)
	}
	if c.Cluster.Workers < 1 {
		return eris.Errorf("config: cluster.workers must be >= 1 (got %d)", c.Cluster.Workers)
	}
	switch c.RFM.AgePolicy {
	case "impute_median", "drop":
	default:
		return eris.Errorf("config: rfm.age_policy must be impute_median or drop (got %q)", c.RFM.AgePolicy)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store.driver must be sqlite or postgres (got %q)", c.Store.Driver)
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
