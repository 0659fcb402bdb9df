package testutils

import (
	"time"

	"github.com/synergypro/verifyd/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "SynergyPro",
			URL:  "http://localhost:8080",
		},
		Server: config.ServerConfig{
			Host:          "127.0.0.1",
			Port:          "0",
			ShutdownGrace: time.Second,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stderr",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Session: config.SessionConfig{
			Enabled:  true,
			Store:    config.StoreMemory,
			Name:     "session",
			MaxAge:   time.Hour,
			HttpOnly: true,
			SameSite: "lax",
			Path:     "/",
		},
		Auth: config.AuthConfig{
			BcryptCost: bcrypt.MinCost,
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        2525,
			Encryption:  "none",
			FromAddress: "noreply@synergypro.test",
			FromName:    "SynergyPro",
		},
		SMS: config.SMSConfig{
			Enabled: true,
			Sender:  "SynergyPro",
		},
		Redis: config.RedisConfig{
			URL:    "redis://localhost:6379/0",
			Prefix: "test",
		},
		Verification: config.VerificationConfig{
			CodeGenerator:  config.GeneratorRandom,
			CodeExpiry:     5 * time.Minute,
			AttemptLimit:   3,
			Cooldown:       15 * time.Minute,
			GlobalCooldown: time.Minute,
			Store:          config.StoreMemory,
			FileDir:        "temp_otp",
			ThrottleScope:  config.ThrottleScopeSession,
			SweepEnabled:   false,
			SweepSchedule:  "@every 5m",
		},
		RateLimit: config.RateLimitConfig{
			Enabled: false,
			Store:   config.StoreMemory,
			Rate:    30,
			Period:  time.Minute,
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		CSRF: config.CSRFConfig{
			Enabled:     false,
			TokenLength: 32,
			TokenLookup: "header:X-CSRF-Token",
			CookieName:  "_csrf",
			CookiePath:  "/",
		},
	}
}

var TestUsers = struct {
	Valid struct {
		Username string
		Email    string
		Phone    string
		Password string
	}
}{
	Valid: struct {
		Username string
		Email    string
		Phone    string
		Password string
	}{
		Username: "testuser",
		Email:    "test@example.com",
		Phone:    "1234567890",
		Password: "testpass123",
	},
}
