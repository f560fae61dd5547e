package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Token transport modes.
const (
	TransportHeader = "header"
	TransportCookie = "cookie"
	TransportBoth   = "both"
)

// Blob storage backends.
const (
	BlobBackendMemory = "memory"
	BlobBackendS3     = "s3"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string   `mapstructure:"REDIS_URL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	ClientURL   string   `mapstructure:"CLIENT_URL"`

	JWTSecret           string        `mapstructure:"JWT_SECRET"`
	JWTExpire           time.Duration `mapstructure:"JWT_EXPIRE"`
	JWTCookieExpireDays int           `mapstructure:"JWT_COOKIE_EXPIRE"`
	TokenTransport      string        `mapstructure:"TOKEN_TRANSPORT"`
	CookieSecure        bool          `mapstructure:"COOKIE_SECURE"`
	AdminSecretKey      string        `mapstructure:"ADMIN_SECRET_KEY"`

	MaxFileUpload int64  `mapstructure:"MAX_FILE_UPLOAD"`
	BlobBackend   string `mapstructure:"BLOB_BACKEND"`
	S3Bucket      string `mapstructure:"S3_BUCKET"`
	S3Region      string `mapstructure:"S3_REGION"`
	S3Endpoint    string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey   string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey   string `mapstructure:"S3_SECRET_KEY"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	RateLimitRPS       float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int     `mapstructure:"RATE_LIMIT_BURST"`
	LoginRatePerMinute int     `mapstructure:"LOGIN_RATE_PER_MINUTE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "CLIENT_URL",
	"JWT_SECRET", "JWT_EXPIRE", "JWT_COOKIE_EXPIRE", "TOKEN_TRANSPORT", "COOKIE_SECURE",
	"ADMIN_SECRET_KEY",
	"MAX_FILE_UPLOAD", "BLOB_BACKEND", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
	"S3_ACCESS_KEY", "S3_SECRET_KEY",
	"REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_PER_MINUTE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("JWT_EXPIRE", "720h")
	v.SetDefault("JWT_COOKIE_EXPIRE", 30)
	v.SetDefault("TOKEN_TRANSPORT", TransportBoth)
	v.SetDefault("MAX_FILE_UPLOAD", 5*1024*1024)
	v.SetDefault("BLOB_BACKEND", BlobBackendMemory)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	// Secure cookies follow the environment unless set explicitly.
	if v.GetString("COOKIE_SECURE") == "" {
		cfg.CookieSecure = cfg.IsProduction()
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CookieTTL is the lifetime of the session cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpireDays) * 24 * time.Hour
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production, got %d", len(c.JWTSecret))
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be a positive duration, got %s", c.JWTExpire)
	}

	switch c.TokenTransport {
	case TransportHeader, TransportCookie, TransportBoth:
	default:
		return fmt.Errorf("TOKEN_TRANSPORT must be %q, %q, or %q, got %q",
			TransportHeader, TransportCookie, TransportBoth, c.TokenTransport)
	}
	if c.TokenTransport != TransportHeader && c.JWTCookieExpireDays <= 0 {
		return fmt.Errorf("JWT_COOKIE_EXPIRE must be a positive number of days, got %d", c.JWTCookieExpireDays)
	}

	if c.MaxFileUpload <= 0 {
		return fmt.Errorf("MAX_FILE_UPLOAD must be positive, got %d", c.MaxFileUpload)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be a positive duration, got %s", c.RequestTimeout)
	}

	switch c.BlobBackend {
	case BlobBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("BLOB_BACKEND=memory is not allowed in production")
		}
	case BlobBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND is %q", BlobBackendS3)
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobBackendMemory, BlobBackendS3, c.BlobBackend)
	}

	return nil
}

// IssueHeaderToken reports whether tokens are returned in the response body
// and accepted from the Authorization header.
func (c *Config) IssueHeaderToken() bool {
	return c.TokenTransport == TransportHeader || c.TokenTransport == TransportBoth
}

// IssueCookieToken reports whether tokens are set as and accepted from the
// session cookie.
func (c *Config) IssueCookieToken() bool {
	return c.TokenTransport == TransportCookie || c.TokenTransport == TransportBoth
}
