package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	LLM       LLMConfig       `mapstructure:"llm"`
	HostedDB  HostedDBConfig  `mapstructure:"hosted_db"`
	Settings  SettingsConfig  `mapstructure:"settings"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Updates   UpdatesConfig   `mapstructure:"updates"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	APIKeys         []string      `mapstructure:"api_keys"`
	AdminKeys       []string      `mapstructure:"admin_keys"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LLMConfig describes the upstream model broker.
type LLMConfig struct {
	Type         string            `mapstructure:"type"`
	BaseURL      string            `mapstructure:"base_url"`
	APIKey       string            `mapstructure:"api_key"`
	DefaultModel string            `mapstructure:"default_model"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Headers      map[string]string `mapstructure:"headers"`
}

// HostedDBConfig points at the PostgREST endpoint of the hosted database.
type HostedDBConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	Tables         []string      `mapstructure:"tables"`
	ItineraryTable string        `mapstructure:"itinerary_table"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

func (c HostedDBConfig) Enabled() bool {
	return c.URL != ""
}

type SettingsConfig struct {
	Backend  string `mapstructure:"backend"` // sqlite, redis, file
	FilePath string `mapstructure:"file_path"`
	RedisKey string `mapstructure:"redis_key"`
}

type CatalogConfig struct {
	catalog.Options `mapstructure:",squash"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

type UpdatesConfig struct {
	Check bool   `mapstructure:"check"`
	Repo  string `mapstructure:"repo"`
}

// AnalyticsConfig tunes request log ingestion. A zero retention keeps logs
// forever.
type AnalyticsConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Retention     time.Duration `mapstructure:"retention"`
}

var settingsBackends = []string{"sqlite", "redis", "file"}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./internal/config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.resolveSecrets(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := catalog.DefaultOptions()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.api_keys", []string{})
	v.SetDefault("server.admin_keys", []string{})
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("database.path", "atlas.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "atlas-api")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("llm.type", "openrouter")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.api_key", "ENV:OPENROUTER_API_KEY")
	v.SetDefault("llm.default_model", "meta-llama/llama-3.1-8b-instruct:free")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("hosted_db.url", "")
	v.SetDefault("hosted_db.api_key", "ENV:SUPABASE_ANON_KEY")
	v.SetDefault("hosted_db.tables", []string{"itineraries", "trips"})
	v.SetDefault("hosted_db.itinerary_table", "itineraries")
	v.SetDefault("hosted_db.timeout", 10*time.Second)

	v.SetDefault("settings.backend", "sqlite")
	v.SetDefault("settings.file_path", "settings.yaml")
	v.SetDefault("settings.redis_key", "atlas:settings")

	v.SetDefault("catalog.keywords", defaults.Keywords)
	v.SetDefault("catalog.cheap_upper_bound", defaults.CheapUpperBound)
	v.SetDefault("catalog.label_scale", defaults.LabelScale)
	v.SetDefault("catalog.currency_prefix", defaults.CurrencyPrefix)
	v.SetDefault("catalog.currency_suffix", defaults.CurrencySuffix)
	v.SetDefault("catalog.free_label", defaults.FreeLabel)
	v.SetDefault("catalog.cache_ttl", 5*time.Minute)

	v.SetDefault("updates.check", false)
	v.SetDefault("updates.repo", "nulzo/atlas-api")

	v.SetDefault("analytics.buffer_size", 10000)
	v.SetDefault("analytics.batch_size", 50)
	v.SetDefault("analytics.flush_interval", 5*time.Second)
	v.SetDefault("analytics.retention", 30*24*time.Hour)
}

// resolveSecrets replaces "ENV:NAME" values with the named variable.
func (c *Config) resolveSecrets(v *viper.Viper) {
	c.LLM.APIKey = resolve(v, c.LLM.APIKey)
	c.HostedDB.APIKey = resolve(v, c.HostedDB.APIKey)
	c.Redis.Password = resolve(v, c.Redis.Password)

	for i, k := range c.Server.APIKeys {
		c.Server.APIKeys[i] = resolve(v, k)
	}
	for i, k := range c.Server.AdminKeys {
		c.Server.AdminKeys[i] = resolve(v, k)
	}
}

func resolve(v *viper.Viper, value string) string {
	envVar, ok := strings.CutPrefix(value, "ENV:")
	if !ok {
		return value
	}
	// Check process environment first (explicit override)
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if !slices.Contains(settingsBackends, c.Settings.Backend) {
		errs = append(errs, fmt.Errorf("settings.backend must be one of %v, got %q", settingsBackends, c.Settings.Backend))
	}
	if c.Settings.Backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, errors.New("settings.backend redis requires redis.enabled"))
	}
	if c.Settings.Backend == "file" && c.Settings.FilePath == "" {
		errs = append(errs, errors.New("settings.file_path is required for the file backend"))
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.Catalog.CheapUpperBound <= 0 {
		errs = append(errs, errors.New("catalog.cheap_upper_bound must be positive"))
	}
	if c.Catalog.LabelScale <= 0 {
		errs = append(errs, errors.New("catalog.label_scale must be positive"))
	}
	if c.Analytics.Retention < 0 {
		errs = append(errs, errors.New("analytics.retention must not be negative"))
	}
	if c.HostedDB.Enabled() && c.HostedDB.ItineraryTable != "" && !slices.Contains(c.HostedDB.Tables, c.HostedDB.ItineraryTable) {
		errs = append(errs, fmt.Errorf("hosted_db.itinerary_table %q is not in hosted_db.tables", c.HostedDB.ItineraryTable))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
