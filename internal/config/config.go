package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 10).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 2).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string `validate:"oneof=dev prod"`

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string `validate:"oneof=text json"`

	// RedisAddr enables the Redis stream notifier when set (host:port).
	RedisAddr     string
	RedisPassword string
	RedisStream   string

	SignIn SignIn
}

// SignIn holds the site settings that drive a run. It is loaded once and
// handed to the orchestrator by value.
type SignIn struct {
	Enabled bool   `yaml:"enabled"`
	Notify  bool   `yaml:"notify"`
	Cron    string `yaml:"cron"`

	// Sites are preset target ids (hh, ou, ttg).
	Sites []string `yaml:"sites" validate:"dive,required"`

	// CustomSites is free text, one "name|baseAddress|credential" per line.
	CustomSites string `yaml:"custom_sites"`

	// Cookies are inline credentials keyed by lower-cased target id.
	Cookies map[string]string `yaml:"cookies"`

	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=10"`
	Unit        time.Duration `yaml:"-" validate:"gte=0"`
	HTTPTimeout time.Duration `yaml:"-" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent"`
}

const defaultJWTSecret = "supersecretkey"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Load reads .env (if present), the optional YAML site file named by
// SIGNIN_CONFIG_FILE, then environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "signindb"),
		DBUser: getEnv("DB_USER", "signin"),
		DBPass: getEnv("DB_PASS", "signin"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 2),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		Env:       getEnv("ENV", "dev"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisStream:   getEnv("REDIS_STREAM", "signin:notifications"),

		SignIn: SignIn{
			Notify:      true,
			MaxAttempts: 3,
			Cookies:     map[string]string{},
		},
	}

	if path := getEnv("SIGNIN_CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg.SignIn); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg.SignIn)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes the YAML site settings at path into s.
func loadFile(path string, s *SignIn) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(s *SignIn) {
	if v := os.Getenv("SIGNIN_ENABLED"); v != "" {
		s.Enabled = parseBool(v, s.Enabled)
	}
	if v := os.Getenv("SIGNIN_NOTIFY"); v != "" {
		s.Notify = parseBool(v, s.Notify)
	}
	s.Cron = getEnv("SIGNIN_CRON", s.Cron)
	if v := os.Getenv("SIGNIN_SITES"); v != "" {
		s.Sites = parseList(v)
	}
	s.CustomSites = getEnv("SIGNIN_CUSTOM_SITES", s.CustomSites)
	s.MaxAttempts = getEnvInt("SIGNIN_MAX_ATTEMPTS", s.MaxAttempts)
	s.UserAgent = getEnv("USER_AGENT", s.UserAgent)
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}

	// One time unit scales every backoff and pacing sleep.
	s.Unit = time.Duration(getEnvInt("SIGNIN_UNIT_SECONDS", 1)) * time.Second
	s.HTTPTimeout = time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	normalized := make(map[string]string, len(s.Cookies))
	for k, v := range s.Cookies {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	s.Cookies = normalized
	for _, id := range []string{"hh", "ou", "ttg"} {
		if v := os.Getenv(strings.ToUpper(id) + "_COOKIE"); v != "" {
			s.Cookies[id] = v
		}
	}
}

// Validate checks struct constraints and the production JWT rule.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Env == "prod" && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return fmt.Errorf("invalid config: JWT_SECRET must be set in prod")
	}
	return nil
}

// DatabaseURL returns a postgres URL suitable for migrations.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// parseList splits a comma-separated list and trims spaces. Empty strings are omitted.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
