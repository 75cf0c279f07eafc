package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	pkgcfg "github.com/Skotchmaster/tictactoe/pkg/config"
)

var supportedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
}

const minSecretLen = 32

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTSecret    []byte
	JWTKeyID     string
	JWTAlgorithm string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RevocationGrace time.Duration
	RotateRefresh   bool
	SweepInterval   time.Duration

	RedisAddr        string
	RedisPassword    string
	LoginMaxAttempts int
	LoginCooldown    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads .env (if present) and the process environment. The returned
// config is validated; callers treat it as read-only for the process lifetime.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("env_file_not_loaded", "error", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		ServiceName: pkgcfg.EnvDefault("SERVICE_NAME", "tictactoe-auth"),
		ServerPort:  pkgcfg.EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: pkgcfg.EnvDefault("DATABASE_URL", ""),

		JWTSecret:    []byte(pkgcfg.EnvDefault("JWT_SECRET", "")),
		JWTKeyID:     pkgcfg.EnvDefault("JWT_KEY_ID", "primary"),
		JWTAlgorithm: pkgcfg.EnvDefault("JWT_ALGORITHM", "HS256"),

		AccessTTL:       time.Duration(pkgcfg.EnvIntDefault("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RefreshTTL:      time.Duration(pkgcfg.EnvIntDefault("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		RevocationGrace: time.Duration(pkgcfg.EnvIntDefault("REVOCATION_GRACE_HOURS", 24)) * time.Hour,
		RotateRefresh:   pkgcfg.EnvBoolDefault("ROTATE_REFRESH_TOKENS", false),
		SweepInterval:   time.Duration(pkgcfg.EnvIntDefault("SWEEP_INTERVAL_MINUTES", 0)) * time.Minute,

		RedisAddr:        pkgcfg.EnvDefault("REDIS_ADDR", ""),
		RedisPassword:    pkgcfg.EnvDefault("REDIS_PASSWORD", ""),
		LoginMaxAttempts: pkgcfg.EnvIntDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginCooldown:    time.Duration(pkgcfg.EnvIntDefault("LOGIN_COOLDOWN_MINUTES", 15)) * time.Minute,

		KafkaBrokers: pkgcfg.CSV(pkgcfg.EnvDefault("KAFKA_BROKERS", "")),
		KafkaTopic:   pkgcfg.EnvDefault("KAFKA_TOPIC", "user_events"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if err := pkgcfg.NonEmpty(c.DatabaseURL, "DATABASE_URL"); err != nil {
		errs = append(errs, err)
	}
	if err := pkgcfg.NonEmpty(string(c.JWTSecret), "JWT_SECRET"); err != nil {
		errs = append(errs, err)
	} else if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if _, ok := supportedAlgorithms[c.JWTAlgorithm]; !ok {
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL_DAYS must outlive the access token"))
	}
	if c.RevocationGrace < 0 {
		errs = append(errs, errors.New("REVOCATION_GRACE_HOURS must not be negative"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_MINUTES must not be negative"))
	}
	if c.LoginMaxAttempts <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be positive"))
	}

	return errors.Join(errs...)
}
