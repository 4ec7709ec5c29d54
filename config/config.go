package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a required setting is missing or out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StaticDir       string        `mapstructure:"static_dir"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN returns the connection URL used by lib/pq and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// SafeDSN is DSN without the password, for logs.
func (d DatabaseConfig) SafeDSN() string {
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", d.User, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	UserTTL  time.Duration `mapstructure:"user_ttl"`
}

// JWTConfig holds the access token signing settings.
// AccessTokenTTL is expressed in seconds.
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
}

// TTL returns the access token lifetime as a duration.
func (j JWTConfig) TTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Second
}

type SecurityConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	AdminLogin    string `mapstructure:"admin_login"`
	AdminPassword string `mapstructure:"admin_password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type RateLimitConfig struct {
	LoginPerSecond float64 `mapstructure:"login_per_second"`
	LoginBurst     int     `mapstructure:"login_burst"`
	// TrustProxy keys the limiter on the first X-Forwarded-For entry. Enable
	// it only behind a proxy that overwrites the header.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.static_dir", "")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "smad")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "smad")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "db/migrations")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.user_ttl", 5*time.Minute)

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.access_token_ttl", 600)

	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.admin_login", "")
	v.SetDefault("security.admin_password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cors.origins", []string{})

	v.SetDefault("rate_limit.login_per_second", 5.0)
	v.SetDefault("rate_limit.login_burst", 10)
	v.SetDefault("rate_limit.trust_proxy", false)
}

// LoadConfig reads config.yml from path, applies SMAD_* environment overrides
// (a .env file in path is loaded first when present) and validates the result.
// A missing config file is not an error: defaults and environment are enough.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("smad")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return err
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("%w: security.bcrypt_cost must be between 4 and 31, got %d", ErrInvalidConfig, c.Security.BcryptCost)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server.port is required", ErrInvalidConfig)
	}
	if c.RateLimit.LoginPerSecond <= 0 || c.RateLimit.LoginBurst < 1 {
		return fmt.Errorf("%w: rate_limit.login_per_second and rate_limit.login_burst must be positive, got %v and %d",
			ErrInvalidConfig, c.RateLimit.LoginPerSecond, c.RateLimit.LoginBurst)
	}
	return nil
}

// Validate checks the token signing settings.
func (j JWTConfig) Validate() error {
	if j.SecretKey == "" {
		return fmt.Errorf("%w: jwt.secret_key is required", ErrInvalidConfig)
	}
	if j.AccessTokenTTL <= 0 {
		return fmt.Errorf("%w: jwt.access_token_ttl must be positive, got %d", ErrInvalidConfig, j.AccessTokenTTL)
	}
	return nil
}
