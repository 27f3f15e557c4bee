package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/epicast/casecast/internal/utils"
)

// Source kinds.
const (
	SourceCSV  = "csv"
	SourceHTTP = "http"
)

// Config captures the settings required to boot the forecast engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Forecast ForecastConfig `yaml:"forecast"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// SourceConfig selects and configures the data source.
type SourceConfig struct {
	Kind string           `yaml:"kind"`
	CSV  CSVSourceConfig  `yaml:"csv"`
	HTTP HTTPSourceConfig `yaml:"http"`
}

// CSVSourceConfig locates the domain files.
type CSVSourceConfig struct {
	Vaccinations string `yaml:"vaccinations"`
	Tests        string `yaml:"tests"`
	CaseGrowth   string `yaml:"caseGrowth"`
	Correlations string `yaml:"correlations"`
}

// HTTPSourceConfig configures the remote data API.
type HTTPSourceConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	VaccinationsPath string        `yaml:"vaccinationsPath"`
	TestsPath        string        `yaml:"testsPath"`
	CaseGrowthPath   string        `yaml:"caseGrowthPath"`
	CorrelationsPath string        `yaml:"correlationsPath"`
	Timeout          time.Duration `yaml:"timeout"`
}

// ForecastConfig holds the anchor date and default horizon.
type ForecastConfig struct {
	// AnchorDate is YYYY-MM-DD; empty means the last date of the loaded data.
	AnchorDate  string `yaml:"anchorDate"`
	DefaultDays int    `yaml:"defaultDays"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of source responses and derived matrices.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
	TLS            bool          `yaml:"tls"`
	CorrelationTTL time.Duration `yaml:"correlationTTL"`
	SourceTTL      time.Duration `yaml:"sourceTTL"`
}

// ScheduleConfig drives recurring forecasts. An empty Cron disables the scheduler.
type ScheduleConfig struct {
	Cron      string `yaml:"cron"`
	StartDate string `yaml:"startDate"`
	Days      int    `yaml:"days"`
	Output    string `yaml:"output"`
	Location  string `yaml:"location"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CASECAST_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the engine cannot start without.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV, SourceHTTP:
	default:
		return fmt.Errorf("source kind %q must be %q or %q", c.Source.Kind, SourceCSV, SourceHTTP)
	}
	if _, err := c.Anchor(); err != nil {
		return fmt.Errorf("forecast anchor: %w", err)
	}
	if c.Forecast.DefaultDays <= 0 {
		return fmt.Errorf("forecast default days must be positive, got %d", c.Forecast.DefaultDays)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache enabled without addr")
	}
	if c.Schedule.Cron != "" {
		if _, err := utils.ParseDate(c.Schedule.StartDate); err != nil {
			return fmt.Errorf("schedule start date: %w", err)
		}
		if c.Schedule.Days <= 0 {
			return fmt.Errorf("schedule days must be positive, got %d", c.Schedule.Days)
		}
		if _, err := time.LoadLocation(c.Schedule.Location); err != nil {
			return fmt.Errorf("schedule location: %w", err)
		}
	}
	return nil
}

// Anchor returns the configured anchor date, or the zero time when unset.
func (c *Config) Anchor() (time.Time, error) {
	return utils.ParseOptionalDate(c.Forecast.AnchorDate)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			Kind: SourceCSV,
			CSV: CSVSourceConfig{
				Vaccinations: "data/vaccinations.csv",
				Tests:        "data/tests.csv",
				CaseGrowth:   "data/case_growth.csv",
			},
			HTTP: HTTPSourceConfig{
				VaccinationsPath: "/api/v1/vaccinations",
				TestsPath:        "/api/v1/tests",
				CaseGrowthPath:   "/api/v1/case-growth",
				Timeout:          5 * time.Second,
			},
		},
		Forecast: ForecastConfig{AnchorDate: "2021-05-17", DefaultDays: 7},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:        false,
			CorrelationTTL: 30 * time.Minute,
			SourceTTL:      5 * time.Minute,
			DialTimeout:    2 * time.Second,
			ReadTimeout:    500 * time.Millisecond,
			WriteTimeout:   500 * time.Millisecond,
			MaxRetries:     2,
		},
		Schedule: ScheduleConfig{Days: 7, Location: "UTC"},
	}
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("CASECAST_SERVER_ADDRESS", &cfg.Server.Address)
	str("CASECAST_METRICS_ADDRESS", &cfg.Server.MetricsAddress)
	duration("CASECAST_GRACEFUL_TIMEOUT", &cfg.Server.GracefulTimeout)

	str("CASECAST_SOURCE_KIND", &cfg.Source.Kind)
	str("CASECAST_CSV_VACCINATIONS", &cfg.Source.CSV.Vaccinations)
	str("CASECAST_CSV_TESTS", &cfg.Source.CSV.Tests)
	str("CASECAST_CSV_CASE_GROWTH", &cfg.Source.CSV.CaseGrowth)
	str("CASECAST_CSV_CORRELATIONS", &cfg.Source.CSV.Correlations)
	str("CASECAST_HTTP_BASE_URL", &cfg.Source.HTTP.BaseURL)
	str("CASECAST_HTTP_CORRELATIONS_PATH", &cfg.Source.HTTP.CorrelationsPath)
	duration("CASECAST_HTTP_TIMEOUT", &cfg.Source.HTTP.Timeout)

	if v, ok := os.LookupEnv("CASECAST_ANCHOR_DATE"); ok {
		cfg.Forecast.AnchorDate = v
	}
	integer("CASECAST_DEFAULT_DAYS", &cfg.Forecast.DefaultDays)

	str("CASECAST_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("CASECAST_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	boolean("CASECAST_CACHE_ENABLED", &cfg.Cache.Enabled)
	str("CASECAST_CACHE_ADDR", &cfg.Cache.Addr)
	str("CASECAST_CACHE_USERNAME", &cfg.Cache.Username)
	str("CASECAST_CACHE_PASSWORD", &cfg.Cache.Password)
	integer("CASECAST_CACHE_DB", &cfg.Cache.DB)
	boolean("CASECAST_CACHE_TLS", &cfg.Cache.TLS)
	duration("CASECAST_CACHE_DIAL_TIMEOUT", &cfg.Cache.DialTimeout)
	duration("CASECAST_CACHE_READ_TIMEOUT", &cfg.Cache.ReadTimeout)
	duration("CASECAST_CACHE_WRITE_TIMEOUT", &cfg.Cache.WriteTimeout)
	integer("CASECAST_CACHE_MAX_RETRIES", &cfg.Cache.MaxRetries)
	duration("CASECAST_CACHE_CORRELATION_TTL", &cfg.Cache.CorrelationTTL)
	duration("CASECAST_CACHE_SOURCE_TTL", &cfg.Cache.SourceTTL)

	str("CASECAST_SCHEDULE_CRON", &cfg.Schedule.Cron)
	str("CASECAST_SCHEDULE_START_DATE", &cfg.Schedule.StartDate)
	integer("CASECAST_SCHEDULE_DAYS", &cfg.Schedule.Days)
	str("CASECAST_SCHEDULE_OUTPUT", &cfg.Schedule.Output)
	str("CASECAST_SCHEDULE_LOCATION", &cfg.Schedule.Location)
}
