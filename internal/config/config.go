// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Server() ServerConfig
	Store() StoreConfig
	Assessment() AssessmentConfig
	Admin() AdminConfig
	Email() EmailConfig
	Report() ReportConfig
	Download() DownloadConfig
	Blob() BlobConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	ServerCfg     ServerConfig     `mapstructure:"server" yaml:"server"`
	StoreCfg      StoreConfig      `mapstructure:"store" yaml:"store"`
	AssessmentCfg AssessmentConfig `mapstructure:"assessment" yaml:"assessment"`
	AdminCfg      AdminConfig      `mapstructure:"admin" yaml:"admin"`
	EmailCfg      EmailConfig      `mapstructure:"email" yaml:"email"`
	ReportCfg     ReportConfig     `mapstructure:"report" yaml:"report"`
	DownloadCfg   DownloadConfig   `mapstructure:"download" yaml:"download"`
	BlobCfg       BlobConfig       `mapstructure:"blob" yaml:"blob"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Server() ServerConfig         { return c.ServerCfg }
func (c *Config) Store() StoreConfig           { return c.StoreCfg }
func (c *Config) Assessment() AssessmentConfig { return c.AssessmentCfg }
func (c *Config) Admin() AdminConfig           { return c.AdminCfg }
func (c *Config) Email() EmailConfig           { return c.EmailCfg }
func (c *Config) Report() ReportConfig         { return c.ReportCfg }
func (c *Config) Download() DownloadConfig     { return c.DownloadCfg }
func (c *Config) Blob() BlobConfig             { return c.BlobCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	// PublicBaseURL prefixes the links sent by email.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	URL        string `mapstructure:"url" yaml:"url"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// AssessmentConfig tunes the session engine.
type AssessmentConfig struct {
	Product           string        `mapstructure:"product" yaml:"product"`
	QuestionBankKey   string        `mapstructure:"question_bank_key" yaml:"question_bank_key"`
	BankCacheTTL      time.Duration `mapstructure:"bank_cache_ttl" yaml:"bank_cache_ttl"`
	SessionTTL        time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	ShufflePhase1     bool          `mapstructure:"shuffle_phase1" yaml:"shuffle_phase1"`
	UnknownKeys       string        `mapstructure:"unknown_keys" yaml:"unknown_keys"`
	Phase2OptionCount int           `mapstructure:"phase2_option_count" yaml:"phase2_option_count"`
	// DomainResultsInterstitial pauses between phase 2 and 3 with a domainResults answer.
	DomainResultsInterstitial bool `mapstructure:"domain_results_interstitial" yaml:"domain_results_interstitial"`
}

// BankKey returns the store key of the question bank.
func (a AssessmentConfig) BankKey() string {
	if a.QuestionBankKey != "" {
		return a.QuestionBankKey
	}
	return a.Product + "-question-bank"
}

// AdminConfig holds the static bearer token of the admin endpoint.
type AdminConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"-"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	APIKey    string        `mapstructure:"api_key" yaml:"-"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	From      string        `mapstructure:"from" yaml:"from"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ReportConfig configures the report endpoint.
type ReportConfig struct {
	Subject            string `mapstructure:"subject" yaml:"subject"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
}

// DownloadConfig configures signed download links.
type DownloadConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"-"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	OneShot  bool          `mapstructure:"one_shot" yaml:"one_shot"`
	TrackTTL time.Duration `mapstructure:"track_ttl" yaml:"track_ttl"`
}

// BlobConfig locates the PDF reports.
type BlobConfig struct {
	Driver  string        `mapstructure:"driver" yaml:"driver"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Dir     string        `mapstructure:"dir" yaml:"dir"`
	Token   string        `mapstructure:"token" yaml:"-"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.applyDerived()
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ari")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.public_base_url", "http://localhost:8080")

	// -- Store --
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.sqlite_path", "ari.db")

	// -- Assessment --
	v.SetDefault("assessment.product", "ari")
	v.SetDefault("assessment.bank_cache_ttl", "5m")
	v.SetDefault("assessment.session_ttl", "72h")
	v.SetDefault("assessment.shuffle_phase1", false)
	v.SetDefault("assessment.unknown_keys", "ignore")
	v.SetDefault("assessment.phase2_option_count", 3)
	v.SetDefault("assessment.domain_results_interstitial", false)

	// -- Email --
	v.SetDefault("email.provider", "log")
	v.SetDefault("email.endpoint", "https://api.resend.com/emails")
	v.SetDefault("email.from", "ARI Assessment <noreply@example.com>")
	v.SetDefault("email.rate_limit", 2.0)
	v.SetDefault("email.timeout", "15s")

	// -- Report --
	v.SetDefault("report.subject", "Your ARI profile report")
	v.SetDefault("report.rate_limit_per_minute", 10)

	// -- Download --
	v.SetDefault("download.ttl", "24h")
	v.SetDefault("download.one_shot", false)
	v.SetDefault("download.track_ttl", "720h")

	// -- Blob --
	v.SetDefault("blob.dir", "reports")
	v.SetDefault("blob.timeout", "30s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("admin.api_key", "ARI_ADMIN_KEY")
	_ = v.BindEnv("download.secret", "ARI_DOWNLOAD_SECRET")
	_ = v.BindEnv("email.api_key", "ARI_EMAIL_API_KEY")
	_ = v.BindEnv("store.url", "ARI_DATABASE_URL")
	_ = v.BindEnv("blob.base_url", "PDF_BASE_URL")
	_ = v.BindEnv("blob.token", "ARI_BLOB_TOKEN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.DownloadCfg.Secret == "" {
		cfg.DownloadCfg.Secret = os.Getenv("ARI_DOWNLOAD_SECRET")
	}
	cfg.applyDerived()

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	// A configured PDF_BASE_URL implies the http driver unless one was chosen.
	if c.BlobCfg.Driver == "" {
		c.BlobCfg.Driver = "dir"
		if c.BlobCfg.BaseURL != "" {
			c.BlobCfg.Driver = "http"
		}
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.StoreCfg.SQLitePath, &c.BlobCfg.Dir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if err := c.AssessmentCfg.Validate(); err != nil {
		return fmt.Errorf("assessment configuration invalid: %w", err)
	}
	if err := c.EmailCfg.Validate(); err != nil {
		return fmt.Errorf("email configuration invalid: %w", err)
	}
	if err := c.DownloadCfg.Validate(); err != nil {
		return fmt.Errorf("download configuration invalid: %w", err)
	}
	if err := c.BlobCfg.Validate(); err != nil {
		return fmt.Errorf("blob configuration invalid: %w", err)
	}
	if c.ReportCfg.RateLimitPerMinute < 0 {
		return fmt.Errorf("report.rate_limit_per_minute must not be negative")
	}
	return nil
}

// Validate checks the store configuration.
func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case "memory":
	case "postgres":
		if s.URL == "" {
			return fmt.Errorf("store.url is required for the postgres driver")
		}
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", s.Driver)
	}
	return nil
}

// Validate checks the assessment configuration.
func (a *AssessmentConfig) Validate() error {
	if strings.TrimSpace(a.Product) == "" {
		return fmt.Errorf("assessment.product must not be empty")
	}
	switch a.UnknownKeys {
	case "ignore", "create", "reject":
	default:
		return fmt.Errorf("assessment.unknown_keys must be one of ignore, create, reject")
	}
	if a.Phase2OptionCount < 1 {
		return fmt.Errorf("assessment.phase2_option_count must be at least 1")
	}
	if a.SessionTTL < 0 || a.BankCacheTTL < 0 {
		return fmt.Errorf("assessment durations must not be negative")
	}
	return nil
}

// Validate checks the email configuration.
func (e *EmailConfig) Validate() error {
	switch e.Provider {
	case "log":
	case "resend":
		if e.APIKey == "" {
			return fmt.Errorf("email API key is required. Ensure ARI_EMAIL_API_KEY is set")
		}
		if e.Endpoint == "" {
			return fmt.Errorf("email.endpoint is required for the resend provider")
		}
	default:
		return fmt.Errorf("unknown email provider %q", e.Provider)
	}
	if e.From == "" {
		return fmt.Errorf("email.from must not be empty")
	}
	return nil
}

// Validate checks the download configuration.
func (d *DownloadConfig) Validate() error {
	if d.Secret == "" {
		return fmt.Errorf("download secret is required. Ensure ARI_DOWNLOAD_SECRET is set")
	}
	if d.TTL <= 0 {
		return fmt.Errorf("download.ttl must be a positive duration")
	}
	return nil
}

// Validate checks the blob configuration.
func (b *BlobConfig) Validate() error {
	switch b.Driver {
	case "http":
		if b.BaseURL == "" {
			return fmt.Errorf("blob.base_url is required for the http driver. Ensure PDF_BASE_URL is set")
		}
	case "dir":
		if b.Dir == "" {
			return fmt.Errorf("blob.dir is required for the dir driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", b.Driver)
	}
	return nil
}
