package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Airtable   AirtableConfig   `yaml:"airtable" mapstructure:"airtable"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	GCS        GCSConfig        `yaml:"gcs" mapstructure:"gcs"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Severity   SeverityConfig   `yaml:"severity" mapstructure:"severity"`
	PhotoMatch PhotoMatchConfig `yaml:"photomatch" mapstructure:"photomatch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AirtableConfig holds Airtable credentials and table names.
type AirtableConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	BaseID           string  `yaml:"base_id" mapstructure:"base_id"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	PatientsTable    string  `yaml:"patients_table" mapstructure:"patients_table"`
	InterestsTable   string  `yaml:"interests_table" mapstructure:"interests_table"`
	SeverityTable    string  `yaml:"severity_table" mapstructure:"severity_table"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MappingCacheSecs int     `yaml:"mapping_cache_secs" mapstructure:"mapping_cache_secs"`
}

// AnalysisConfig holds settings for the external image-analysis service.
type AnalysisConfig struct {
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Key              string `yaml:"key" mapstructure:"key"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	UploadBaseURL   string `yaml:"upload_base_url" mapstructure:"upload_base_url"`
	PublicBaseURL   string `yaml:"public_base_url" mapstructure:"public_base_url"`
	MaxUploadMB     int    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// AuthConfig configures provider access codes and session tokens.
type AuthConfig struct {
	JWTSecret       string            `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	SessionTTLHours int               `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	ProviderCodes   map[string]string `yaml:"provider_codes" mapstructure:"provider_codes"`
	LoginRatePerMin int               `yaml:"login_rate_per_min" mapstructure:"login_rate_per_min"`
	SecureCookie    bool              `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	AllowedOrigins  []string          `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// SeverityConfig configures severity score rescaling.
type SeverityConfig struct {
	UIMin         float64 `yaml:"ui_min" mapstructure:"ui_min"`
	UIMax         float64 `yaml:"ui_max" mapstructure:"ui_max"`
	ScalingType   string  `yaml:"scaling_type" mapstructure:"scaling_type"`
	Exponent      float64 `yaml:"exponent" mapstructure:"exponent"`
	DefaultFactor float64 `yaml:"default_factor" mapstructure:"default_factor"`
}

// PhotoMatchConfig configures the before/after photo catalog.
type PhotoMatchConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// StoreConfig configures the local database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	ShutdownSecs    int `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
	RequestTimeoutS int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// RetryConfig configures retries for upstream API calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MEDSPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("airtable.token", "")
	v.SetDefault("airtable.base_id", "")
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.patients_table", "Patients")
	v.SetDefault("airtable.interests_table", "Interest Items")
	v.SetDefault("airtable.severity_table", "Severity Mappings")
	v.SetDefault("airtable.rate_limit", 5.0)
	v.SetDefault("airtable.timeout_secs", 30)
	v.SetDefault("airtable.mapping_cache_secs", 300)
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.key", "")
	v.SetDefault("analysis.timeout_secs", 90)
	v.SetDefault("analysis.cache_ttl_hours", 24)
	v.SetDefault("analysis.failure_threshold", 5)
	v.SetDefault("analysis.reset_timeout_secs", 30)
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.credentials_file", "")
	v.SetDefault("gcs.upload_base_url", "https://storage.googleapis.com/upload/storage/v1")
	v.SetDefault("gcs.public_base_url", "https://storage.googleapis.com")
	v.SetDefault("gcs.max_upload_mb", 50)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl_hours", 12)
	v.SetDefault("auth.login_rate_per_min", 10)
	v.SetDefault("auth.secure_cookie", true)
	v.SetDefault("auth.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("severity.ui_min", 60.0)
	v.SetDefault("severity.ui_max", 95.0)
	v.SetDefault("severity.scaling_type", "linear")
	v.SetDefault("severity.exponent", 1.0)
	v.SetDefault("severity.default_factor", 1.0)
	v.SetDefault("photomatch.catalog_path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "medspa.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_secs", 15)
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
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

// Validate reports the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Airtable.Token == "" {
		missing = append(missing, "airtable.token")
	}
	if c.Airtable.BaseID == "" {
		missing = append(missing, "airtable.base_id")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if len(c.Auth.ProviderCodes) == 0 {
		missing = append(missing, "auth.provider_codes")
	}
	if c.Severity.UIMin >= c.Severity.UIMax {
		return eris.Errorf("config: severity.ui_min (%.1f) must be below severity.ui_max (%.1f)", c.Severity.UIMin, c.Severity.UIMax)
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
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
