package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	SMS       SMSConfig
	Fees      FeesConfig
	Reminders ReminderConfig
	Scheduler SchedulerConfig
	Reports   ReportsConfig
	Stats     StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SMSConfig points at the outbound SMS gateway.
type SMSConfig struct {
	Enabled  bool
	BaseURL  string
	APIKey   string
	SenderID string
	Timeout  time.Duration
	Workers  int
}

// FeesConfig tunes monthly fee generation.
type FeesConfig struct {
	DueDay int
}

// ReminderConfig tunes the daily fee reminder sweep.
type ReminderConfig struct {
	Enabled     bool
	DaysBefore  int
	OverdueDays []int
	FinalDay    int
	MaxPerFee   int
	MinGap      time.Duration
}

// SchedulerConfig controls the calendar job runner.
type SchedulerConfig struct {
	Enabled        bool
	ReminderHour   int
	GenerationDay  int
	GenerationHour int
	LockTTL        time.Duration
}

// ReportsConfig controls generated report storage & signed downloads.
type ReportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	RetentionTTL    time.Duration
}

// StatsConfig controls caching of reminder effectiveness stats.
type StatsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMS = SMSConfig{
		Enabled:  v.GetBool("SMS_ENABLED"),
		BaseURL:  v.GetString("SMS_GATEWAY_URL"),
		APIKey:   v.GetString("SMS_API_KEY"),
		SenderID: v.GetString("SMS_SENDER_ID"),
		Timeout:  parseDuration(v.GetString("SMS_TIMEOUT"), 10*time.Second),
		Workers:  v.GetInt("SMS_WORKERS"),
	}

	cfg.Fees = FeesConfig{
		DueDay: v.GetInt("FEE_DUE_DAY"),
	}

	cfg.Reminders = ReminderConfig{
		Enabled:     v.GetBool("FEE_REMINDER_ENABLED"),
		DaysBefore:  v.GetInt("FEE_REMINDER_DAYS_BEFORE"),
		OverdueDays: splitInts(v.GetString("FEE_REMINDER_OVERDUE_DAYS")),
		FinalDay:    v.GetInt("FEE_REMINDER_FINAL_DAY"),
		MaxPerFee:   v.GetInt("FEE_REMINDER_MAX_PER_FEE"),
		MinGap:      parseDuration(v.GetString("FEE_REMINDER_MIN_GAP"), 48*time.Hour),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:        v.GetBool("SCHEDULER_ENABLED"),
		ReminderHour:   v.GetInt("SCHEDULER_REMINDER_HOUR"),
		GenerationDay:  v.GetInt("SCHEDULER_GENERATION_DAY"),
		GenerationHour: v.GetInt("SCHEDULER_GENERATION_HOUR"),
		LockTTL:        parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 30*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		RetentionTTL:    parseDuration(v.GetString("REPORTS_RETENTION_TTL"), 7*24*time.Hour),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_fees")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "fees-api")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMS_ENABLED", true)
	v.SetDefault("SMS_TIMEOUT", "10s")
	v.SetDefault("SMS_WORKERS", 2)

	v.SetDefault("FEE_DUE_DAY", 10)

	v.SetDefault("FEE_REMINDER_ENABLED", true)
	v.SetDefault("FEE_REMINDER_DAYS_BEFORE", 3)
	v.SetDefault("FEE_REMINDER_OVERDUE_DAYS", "3,7")
	v.SetDefault("FEE_REMINDER_FINAL_DAY", 15)
	v.SetDefault("FEE_REMINDER_MAX_PER_FEE", 4)
	v.SetDefault("FEE_REMINDER_MIN_GAP", "48h")

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_REMINDER_HOUR", 9)
	v.SetDefault("SCHEDULER_GENERATION_DAY", 1)
	v.SetDefault("SCHEDULER_GENERATION_HOUR", 6)
	v.SetDefault("SCHEDULER_LOCK_TTL", "30m")

	v.SetDefault("REPORTS_STORAGE_DIR", "./reports")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_RETENTION_TTL", "168h")

	v.SetDefault("STATS_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitInts(raw string) []int {
	out := make([]int, 0, 4)
	for _, p := range splitAndTrim(raw) {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
