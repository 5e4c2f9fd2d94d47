package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, empty URL disables Postgres)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Screening engine
	Backtest BacktestConfig

	// Market data
	DataSource     DataSourceConfig
	CircuitBreaker CircuitBreakerConfig

	// Notification
	SMTP SMTPConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a Postgres URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// BacktestConfig holds the fan-out settings of a screening run
type BacktestConfig struct {
	Workers       int
	TaskTimeout   time.Duration
	ProgressEvery int
	ResultsDir    string
	LookbackDays  int
}

// DataSourceConfig selects and tunes the market data collaborator
type DataSourceConfig struct {
	Provider         string // eastmoney, postgres
	EastmoneyBaseURL string
	SinaBaseURL      string
	RateLimit        float64 // requests per second
	Serialize        bool    // serialize upstream calls behind one lock
	CacheDir         string
	BarCacheTTL      time.Duration
	UniverseCacheTTL time.Duration
}

// CircuitBreakerConfig holds upstream breaker settings
type CircuitBreakerConfig struct {
	Enabled     bool
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip uint32
}

// SMTPConfig holds mail delivery settings
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	UseTLS   bool // STARTTLS instead of implicit TLS
}

// Enabled reports whether mail delivery is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != "" && len(s.To) > 0
}

// SchedulerConfig holds cron expressions (with seconds)
type SchedulerConfig struct {
	DailySchedule   string
	CleanupSchedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Backtest: BacktestConfig{
			Workers:       getEnvAsInt("BACKTEST_WORKERS", 30),
			TaskTimeout:   getEnvAsDuration("BACKTEST_TASK_TIMEOUT", "30s"),
			ProgressEvery: getEnvAsInt("BACKTEST_PROGRESS_EVERY", 10),
			ResultsDir:    getEnv("RESULTS_DIR", "results"),
			LookbackDays:  getEnvAsInt("BACKTEST_LOOKBACK_DAYS", 30),
		},

		DataSource: DataSourceConfig{
			Provider:         getEnv("DATA_SOURCE", "eastmoney"),
			EastmoneyBaseURL: getEnv("EASTMONEY_BASE_URL", "https://push2his.eastmoney.com"),
			SinaBaseURL:      getEnv("SINA_BASE_URL", "https://vip.stock.finance.sina.com.cn"),
			RateLimit:        getEnvAsFloat("DATA_RATE_LIMIT", 20),
			Serialize:        getEnvAsBool("DATA_SERIALIZE", false),
			CacheDir:         getEnv("CACHE_DIR", "cache"),
			BarCacheTTL:      getEnvAsDuration("BAR_CACHE_TTL", "168h"),
			UniverseCacheTTL: getEnvAsDuration("UNIVERSE_CACHE_TTL", "24h"),
		},

		CircuitBreaker: CircuitBreakerConfig{
			Enabled:     getEnvAsBool("BREAKER_ENABLED", true),
			MaxRequests: uint32(getEnvAsInt("BREAKER_MAX_REQUESTS", 5)),
			Interval:    getEnvAsDuration("BREAKER_INTERVAL", "60s"),
			Timeout:     getEnvAsDuration("BREAKER_TIMEOUT", "30s"),
			ReadyToTrip: uint32(getEnvAsInt("BREAKER_READY_TO_TRIP", 20)),
		},

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 465),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", ""),
			To:       getEnvAsList("SMTP_TO"),
			UseTLS:   getEnvAsBool("SMTP_USE_TLS", false),
		},

		Scheduler: SchedulerConfig{
			DailySchedule:   getEnv("DAILY_SCHEDULE", "0 30 16 * * 1-5"), // 평일 16:30
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 0 3 * * *"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Backtest.Workers <= 0 {
		return fmt.Errorf("BACKTEST_WORKERS must be > 0")
	}
	if c.Backtest.TaskTimeout <= 0 {
		return fmt.Errorf("BACKTEST_TASK_TIMEOUT must be > 0")
	}
	if c.Backtest.LookbackDays <= 0 {
		return fmt.Errorf("BACKTEST_LOOKBACK_DAYS must be > 0")
	}

	switch c.DataSource.Provider {
	case "eastmoney":
	case "postgres":
		if !c.Database.Enabled() {
			return fmt.Errorf("DATA_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be one of: eastmoney, postgres")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
