package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/gridshift-project/gridshift/pkg/models"
)

const envPrefix = "GRIDSHIFT"

// Config is every runtime knob the agent honors. Values come from an
// optional config file, GRIDSHIFT_* environment variables, and defaults,
// highest first.
type Config struct {
	// DataDir is where the decision ledger and transaction log live.
	DataDir string `mapstructure:"data_dir"`

	HorizonHours  int           `mapstructure:"horizon_hours"`
	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	Regions       []string      `mapstructure:"regions"`
	DefaultRegion string        `mapstructure:"default_region"`

	// Counterparty is the protocol endpoint confirmed schedules execute
	// against.
	Counterparty CounterpartyConfig `mapstructure:"counterparty"`
	Optimizer    OptimizerConfig    `mapstructure:"optimizer"`
	Forecast     ForecastConfig     `mapstructure:"forecast"`
	Simulator    SimulatorConfig    `mapstructure:"simulator"`
}

type CounterpartyConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	SubscriberID string        `mapstructure:"subscriber_id"`
	StepTimeout  time.Duration `mapstructure:"step_timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryBudget  int           `mapstructure:"retry_budget"`
	// MaxConcurrent bounds parallel transaction sequences.
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type OptimizerConfig struct {
	WindowCount        int           `mapstructure:"window_count"`
	MaxForecastWorkers int           `mapstructure:"max_forecast_workers"`
	RevenueShare       float64       `mapstructure:"revenue_share"`
	AdvisorTimeout     time.Duration `mapstructure:"advisor_timeout"`
}

type ForecastConfig struct {
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Seed          int64         `mapstructure:"seed"`
}

type SimulatorConfig struct {
	Seed    int64 `mapstructure:"seed"`
	MinJobs int   `mapstructure:"min_jobs"`
	MaxJobs int   `mapstructure:"max_jobs"`
}

// Load reads configuration from the given file (optional) plus the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("horizon_hours", models.DefaultHorizonHours)
	v.SetDefault("cycle_interval", 5*time.Minute)
	v.SetDefault("regions", []string{"north", "south", "scotland"})
	v.SetDefault("default_region", models.DefaultRegion)

	v.SetDefault("counterparty.base_url", "http://localhost:8900")
	v.SetDefault("counterparty.subscriber_id", "gridshift-agent")
	v.SetDefault("counterparty.step_timeout", 30*time.Second)
	v.SetDefault("counterparty.retry_max", 2)
	v.SetDefault("counterparty.retry_budget", 3)
	v.SetDefault("counterparty.max_concurrent", 4)

	v.SetDefault("optimizer.window_count", models.DefaultWindowCount)
	v.SetDefault("optimizer.max_forecast_workers", 4)
	v.SetDefault("optimizer.revenue_share", 0.10)
	v.SetDefault("optimizer.advisor_timeout", 10*time.Second)

	v.SetDefault("forecast.source_timeout", 10*time.Second)
	v.SetDefault("forecast.cache_ttl", 5*time.Minute)
	v.SetDefault("forecast.seed", 42)

	v.SetDefault("simulator.seed", 42)
	v.SetDefault("simulator.min_jobs", 1)
	v.SetDefault("simulator.max_jobs", 5)
}
