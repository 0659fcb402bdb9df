package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Session      SessionConfig      `envPrefix:"SESSION_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	Mail         MailConfig         `envPrefix:"MAIL_"`
	SMS          SMSConfig          `envPrefix:"SMS_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Metrics      MetricsConfig      `envPrefix:"METRICS_"`
	CSRF         CSRFConfig         `envPrefix:"CSRF_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"SynergyPro"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"json"`
	Output     string `env:"OUTPUT" envDefault:"stdout"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"7"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"30"`
	Compress   bool   `env:"COMPRESS" envDefault:"true"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"app.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Store    string        `env:"STORE" envDefault:"memory"`
	Name     string        `env:"NAME" envDefault:"session"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"24h"`
	Secure   bool          `env:"SECURE" envDefault:"false"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
}

type AuthConfig struct {
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type MailConfig struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"noreply@synergypro.local"`
	FromName     string `env:"FROM_NAME" envDefault:"SynergyPro"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type SMSConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Sender  string `env:"SENDER" envDefault:"SynergyPro"`
}

type RedisConfig struct {
	URL      string `env:"URL" envDefault:"redis://localhost:6379/0"`
	Password string `env:"PASSWORD"`
	Prefix   string `env:"PREFIX" envDefault:"synergy"`
}

type VerificationConfig struct {
	CodeGenerator  string        `env:"CODE_GENERATOR" envDefault:"random"`
	CodeExpiry     time.Duration `env:"CODE_EXPIRY" envDefault:"5m"`
	AttemptLimit   int           `env:"ATTEMPT_LIMIT" envDefault:"3"`
	Cooldown       time.Duration `env:"COOLDOWN" envDefault:"15m"`
	GlobalCooldown time.Duration `env:"GLOBAL_COOLDOWN" envDefault:"1m"`
	Store          string        `env:"STORE" envDefault:"database"`
	FileDir        string        `env:"FILE_DIR" envDefault:"temp_otp"`
	ThrottleScope  string        `env:"THROTTLE_SCOPE" envDefault:"session"`
	SweepEnabled   bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepSchedule  string        `env:"SWEEP_SCHEDULE" envDefault:"@every 5m"`
}

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Store   string        `env:"STORE" envDefault:"memory"`
	Rate    int           `env:"RATE" envDefault:"30"`
	Period  time.Duration `env:"PERIOD" envDefault:"1m"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// CSRFConfig protects the cookie-authenticated form endpoints. Clients read
// the token from GET /auth/csrf and echo it in TokenLookup.
type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"true"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"header:X-CSRF-Token,form:csrf_token"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain   string `env:"COOKIE_DOMAIN"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"strict"`
}

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreDatabase = "database"
	StoreRedis    = "redis"

	ThrottleScopeSession = "session"
	ThrottleScopeDurable = "durable"

	GeneratorRandom = "random"
	GeneratorHOTP   = "hotp"
)

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}

	return nil
}

func (c *Config) Validate() error {
	if err := validateVerificationConfig(&c.Verification); err != nil {
		return err
	}
	if err := validateSessionConfig(&c.Session); err != nil {
		return err
	}
	if c.Verification.ThrottleScope == ThrottleScopeSession && !c.Session.Enabled {
		return errors.New("session throttle scope requires sessions to be enabled")
	}
	if err := validateCSRFConfig(&c.CSRF); err != nil {
		return err
	}
	return validateRateLimitConfig(&c.RateLimit)
}

func validateCSRFConfig(cfg *CSRFConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.CookieSameSite {
	case "strict", "lax":
	case "none":
		if !cfg.CookieSecure {
			return errors.New("csrf cookie with SameSite=none must be secure")
		}
	default:
		return fmt.Errorf("unknown csrf cookie SameSite mode %q", cfg.CookieSameSite)
	}
	return nil
}

func validateVerificationConfig(cfg *VerificationConfig) error {
	if cfg.CodeExpiry <= 0 {
		return errors.New("verification code expiry must be positive")
	}
	if cfg.AttemptLimit < 1 {
		return errors.New("verification attempt limit must be at least 1")
	}
	if cfg.Cooldown <= 0 || cfg.GlobalCooldown < 0 {
		return errors.New("verification cooldowns must not be negative")
	}

	switch cfg.Store {
	case StoreMemory, StoreDatabase, StoreRedis:
	case StoreFile:
		if cfg.FileDir == "" {
			return errors.New("verification file store requires a directory")
		}
	default:
		return fmt.Errorf("unknown verification store %q", cfg.Store)
	}

	switch cfg.ThrottleScope {
	case ThrottleScopeSession, ThrottleScopeDurable:
	default:
		return fmt.Errorf("unknown throttle scope %q", cfg.ThrottleScope)
	}

	switch cfg.CodeGenerator {
	case GeneratorRandom, GeneratorHOTP:
	default:
		return fmt.Errorf("unknown code generator %q", cfg.CodeGenerator)
	}

	return nil
}

func validateSessionConfig(cfg *SessionConfig) error {
	switch cfg.Store {
	case StoreMemory, StoreDatabase:
		return nil
	default:
		return fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Rate < 1 || cfg.Period <= 0 {
		return errors.New("rate limit requires a positive rate and period")
	}
	switch cfg.Store {
	case StoreMemory, StoreRedis:
		return nil
	default:
		return fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}
