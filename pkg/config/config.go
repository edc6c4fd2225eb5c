package config

import (
	"errors"
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
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes timetable generation, optimisation and the background sweep.
type SchedulerConfig struct {
	MaxIterations        int
	OptimizeIterations   int
	LockTTL              time.Duration
	EvaluationCacheTTL   time.Duration
	SweepEnabled         bool
	SweepCron            string
	SweepAlgorithm       string
	Workers              int
	WorkerRetries        int
	RandomSeed           int64
	LateSlotThreshold    int
	DefaultTargetPenalty float64
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		MaxIterations:        positiveInt(v.GetInt("SCHEDULER_MAX_ITERATIONS"), 1000),
		OptimizeIterations:   positiveInt(v.GetInt("SCHEDULER_OPTIMIZE_ITERATIONS"), 100),
		LockTTL:              parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 5*time.Minute),
		EvaluationCacheTTL:   parseDuration(v.GetString("SCHEDULER_EVAL_CACHE_TTL"), 10*time.Minute),
		SweepEnabled:         v.GetBool("SCHEDULER_SWEEP_ENABLED"),
		SweepCron:            v.GetString("SCHEDULER_SWEEP_CRON"),
		SweepAlgorithm:       v.GetString("SCHEDULER_SWEEP_ALGORITHM"),
		Workers:              positiveInt(v.GetInt("SCHEDULER_WORKERS"), 2),
		WorkerRetries:        v.GetInt("SCHEDULER_WORKER_RETRIES"),
		RandomSeed:           v.GetInt64("SCHEDULER_RANDOM_SEED"),
		LateSlotThreshold:    positiveInt(v.GetInt("SCHEDULER_LATE_SLOT_THRESHOLD"), 7),
		DefaultTargetPenalty: v.GetFloat64("SCHEDULER_TARGET_PENALTY"),
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
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_MAX_ITERATIONS", 1000)
	v.SetDefault("SCHEDULER_OPTIMIZE_ITERATIONS", 100)
	v.SetDefault("SCHEDULER_LOCK_TTL", "5m")
	v.SetDefault("SCHEDULER_EVAL_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_SWEEP_ENABLED", false)
	v.SetDefault("SCHEDULER_SWEEP_CRON", "0 3 * * *")
	v.SetDefault("SCHEDULER_SWEEP_ALGORITHM", "LOCAL_SEARCH")
	v.SetDefault("SCHEDULER_WORKERS", 2)
	v.SetDefault("SCHEDULER_WORKER_RETRIES", 1)
	v.SetDefault("SCHEDULER_RANDOM_SEED", 0)
	v.SetDefault("SCHEDULER_LATE_SLOT_THRESHOLD", 7)
	v.SetDefault("SCHEDULER_TARGET_PENALTY", 100)
}

// isMissingFile covers viper returning a plain fs error when SetConfigFile points at a
// file that does not exist.
func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
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

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
