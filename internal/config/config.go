package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported GUARD_STORE values
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Guard    GuardConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	AdminAPIToken      string   // empty disables /admin routes
	TrustedProxies     []string // CIDRs whose X-Forwarded-For is honoured
	IPRequestsPerMin   int      // per-IP limit on /auth/login, independent of the identity guard
	TimingBaseDelay    time.Duration
	TimingRandomDelay  time.Duration
	SeedUserEmail      string // optional account created at startup
	SeedUserPassword   string
}

// GuardConfig configures the login abuse guard and its backing store
type GuardConfig struct {
	Store            string
	SQLitePath       string
	FailureThreshold int
	BlockDuration    time.Duration
	AttemptsTTL      time.Duration
}

type EmailConfig struct {
	LockoutNotifyEnabled bool
	AWSRegion            string
	FromAddress          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "shopguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			AdminAPIToken:      getEnv("ADMIN_API_TOKEN", ""),
			TrustedProxies:     getEnvAsList("TRUSTED_PROXIES"),
			IPRequestsPerMin:   getEnvAsInt("LOGIN_IP_REQUESTS_PER_MINUTE", 20),
			TimingBaseDelay:    getEnvAsDuration("LOGIN_TIMING_BASE_DELAY", 200*time.Millisecond),
			TimingRandomDelay:  getEnvAsDuration("LOGIN_TIMING_RANDOM_DELAY", 100*time.Millisecond),
			SeedUserEmail:      getEnv("SEED_USER_EMAIL", ""),
			SeedUserPassword:   getEnv("SEED_USER_PASSWORD", ""),
		},
		Guard: GuardConfig{
			Store:            strings.ToLower(getEnv("GUARD_STORE", StoreMemory)),
			SQLitePath:       getEnv("GUARD_SQLITE_PATH", "data/guard.db"),
			FailureThreshold: getEnvAsInt("GUARD_FAILURE_THRESHOLD", 5),
			BlockDuration:    getEnvAsDuration("GUARD_BLOCK_DURATION", 15*time.Minute),
			AttemptsTTL:      getEnvAsDuration("GUARD_ATTEMPTS_TTL", 15*time.Minute),
		},
		Email: EmailConfig{
			LockoutNotifyEnabled: getEnvAsBool("LOCKOUT_NOTIFY_ENABLED", false),
			AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
			FromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Guard.validate(); err != nil {
		return nil, err
	}

	if cfg.Guard.Store == StorePostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required when GUARD_STORE=%s", StorePostgres)
	}

	if cfg.Email.LockoutNotifyEnabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when LOCKOUT_NOTIFY_ENABLED=true")
	}

	return cfg, nil
}

// UsesPostgres reports whether a Postgres connection is needed, either for
// guard state or as the user store
func (c *Config) UsesPostgres() bool {
	return c.Guard.Store == StorePostgres || c.Database.Password != ""
}

func (g *GuardConfig) validate() error {
	switch g.Store {
	case StoreMemory, StorePostgres:
	case StoreSQLite:
		if g.SQLitePath == "" {
			return fmt.Errorf("GUARD_SQLITE_PATH is required when GUARD_STORE=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("GUARD_STORE must be one of %s, %s, %s (got %q)", StoreMemory, StorePostgres, StoreSQLite, g.Store)
	}

	if g.FailureThreshold <= 0 {
		return fmt.Errorf("GUARD_FAILURE_THRESHOLD must be positive (got %d)", g.FailureThreshold)
	}
	if g.BlockDuration <= 0 {
		return fmt.Errorf("GUARD_BLOCK_DURATION must be positive (got %s)", g.BlockDuration)
	}
	if g.AttemptsTTL <= 0 {
		return fmt.Errorf("GUARD_ATTEMPTS_TTL must be positive (got %s)", g.AttemptsTTL)
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	values := []string{}
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	return values
}
