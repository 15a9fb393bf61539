package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	RabbitMQ  RabbitMQConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Payroll   PayrollConfig
	Audit     AuditConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestDeadline time.Duration `mapstructure:"request_deadline"`
	Environment     string        `mapstructure:"environment"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Validate checks that the database configuration is valid for the given environment.
func (c *DatabaseConfig) Validate(environment string) error {
	if environment == EnvProduction || environment == EnvStaging {
		if c.Host == "" || c.Host == "localhost" {
			return errors.New("HRMS_DATABASE_HOST must be set to a non-localhost value in " + environment)
		}
	}
	return nil
}

// RabbitMQConfig holds RabbitMQ connection configuration. An empty URL
// disables event publishing.
type RabbitMQConfig struct {
	URL            string        `mapstructure:"url"`
	Exchange       string        `mapstructure:"exchange"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	PrefetchCount  int           `mapstructure:"prefetch_count"`
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
	Issuer        string        `mapstructure:"issuer"`
}

// RateLimitConfig holds per-route-class token bucket parameters,
// expressed as requests per window.
type RateLimitConfig struct {
	LoginPerMinute     int `mapstructure:"login_per_minute"`
	RegisterPerFiveMin int `mapstructure:"register_per_five_min"`
	AuthPerMinute      int `mapstructure:"auth_per_minute"`
	GeneralPerMinute   int `mapstructure:"general_per_minute"`
}

// ProfessionalTaxSlab maps a monthly gross floor to a flat tax amount.
// The highest slab whose GrossAbove does not exceed gross applies.
type ProfessionalTaxSlab struct {
	GrossAbove float64 `mapstructure:"gross_above"`
	Amount     float64 `mapstructure:"amount"`
}

// PayrollConfig holds the statutory profile consumed by the payroll
// engines. Injected at boot; engines never hardcode these.
type PayrollConfig struct {
	PFBaseCap          float64               `mapstructure:"pf_base_cap"`
	PFRate             float64               `mapstructure:"pf_rate"`
	ESIEmployeeRate    float64               `mapstructure:"esi_employee_rate"`
	ESIEmployerRate    float64               `mapstructure:"esi_employer_rate"`
	ProfessionalTax    []ProfessionalTaxSlab `mapstructure:"professional_tax"`
	DefaultWorkingDays int                   `mapstructure:"default_working_days"`
	HRAPercentLow      float64               `mapstructure:"hra_percent_low"`
	HRAPercentHigh     float64               `mapstructure:"hra_percent_high"`
	HRAThresholdCTC    float64               `mapstructure:"hra_threshold_ctc"`
	ConveyanceDefault  float64               `mapstructure:"conveyance_default"`
	TelephoneDefault   float64               `mapstructure:"telephone_default"`
	MedicalDefault     float64               `mapstructure:"medical_default"`
	PartialAdvances    bool                  `mapstructure:"partial_advances"`
}

// AuditConfig controls the async audit recorder.
type AuditConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Load loads configuration from environment and config files with
// development defaults applied.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HRMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/hrms")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithValidation loads configuration and validates it for the current
// environment. Use in main() for fail-fast behavior.
func LoadWithValidation(serviceName string) (*Config, error) {
	cfg, err := Load(serviceName)
	if err != nil {
		return nil, err
	}

	if err := cfg.Database.Validate(cfg.Server.Environment); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}

	if err := cfg.ValidateSigningKey(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateSigningKey enforces the minimum signing key length and rejects
// the development placeholder outside development.
func (c *Config) ValidateSigningKey() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("HRMS_JWT_SECRET must be at least 32 bytes")
	}
	if c.Server.Environment != EnvDevelopment && c.JWT.Secret == devSecret {
		return errors.New("HRMS_JWT_SECRET must be set to a secure value in " + c.Server.Environment)
	}
	return nil
}

const devSecret = "dev-secret-change-in-production!!"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_deadline", 30*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hrms")
	v.SetDefault("database.password", "devpassword")
	v.SetDefault("database.database", "hrms")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "hrms.events")
	v.SetDefault("rabbitmq.reconnect_delay", 5*time.Second)
	v.SetDefault("rabbitmq.prefetch_count", 10)

	v.SetDefault("jwt.secret", devSecret)
	v.SetDefault("jwt.access_expiry", 24*time.Hour)
	v.SetDefault("jwt.refresh_expiry", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "hrms")

	v.SetDefault("ratelimit.login_per_minute", 5)
	v.SetDefault("ratelimit.register_per_five_min", 3)
	v.SetDefault("ratelimit.auth_per_minute", 20)
	v.SetDefault("ratelimit.general_per_minute", 100)

	v.SetDefault("payroll.pf_base_cap", 15000.0)
	v.SetDefault("payroll.pf_rate", 12.0)
	v.SetDefault("payroll.esi_employee_rate", 0.75)
	v.SetDefault("payroll.esi_employer_rate", 3.25)
	v.SetDefault("payroll.default_working_days", 26)
	v.SetDefault("payroll.hra_percent_low", 10.0)
	v.SetDefault("payroll.hra_percent_high", 40.0)
	v.SetDefault("payroll.hra_threshold_ctc", 1200000.0)
	v.SetDefault("payroll.conveyance_default", 1600.0)
	v.SetDefault("payroll.telephone_default", 500.0)
	v.SetDefault("payroll.medical_default", 1250.0)
	v.SetDefault("payroll.partial_advances", false)

	v.SetDefault("audit.queue_size", 1024)
}
