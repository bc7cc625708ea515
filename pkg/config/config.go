package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Response store backends selectable through RESPONSE_STORE.
const (
	ResponseStorePostgres = "postgres"
	ResponseStoreDynamo   = "dynamodb"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Dynamo    DynamoConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Stats     StatsConfig
	Responses ResponsesConfig
	AutoClose AutoCloseConfig
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

// DynamoConfig points the document-store response backend at a table.
type DynamoConfig struct {
	Region         string
	Endpoint       string
	ResponsesTable string
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StatsConfig governs caching of compiled session statistics.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ResponsesConfig selects the response repository and tunes its reads.
type ResponsesConfig struct {
	Store        string
	HashSecret   string
	FetchTimeout time.Duration
}

// AutoCloseConfig drives the background closer for sessions past their deadline.
type AutoCloseConfig struct {
	Enabled           bool
	Interval          time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.Dynamo = DynamoConfig{
		Region:         v.GetString("DYNAMO_REGION"),
		Endpoint:       v.GetString("DYNAMO_ENDPOINT"),
		ResponsesTable: v.GetString("DYNAMO_RESPONSES_TABLE"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("STATS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), time.Hour),
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("RESPONSE_STORE")))
	if store != ResponseStoreDynamo {
		store = ResponseStorePostgres
	}
	cfg.Responses = ResponsesConfig{
		Store:        store,
		HashSecret:   v.GetString("RESPONDENT_HASH_SECRET"),
		FetchTimeout: parseDuration(v.GetString("FETCH_TIMEOUT"), 15*time.Second),
	}

	cfg.AutoClose = AutoCloseConfig{
		Enabled:           v.GetBool("AUTO_CLOSE_ENABLED"),
		Interval:          parseDuration(v.GetString("AUTO_CLOSE_INTERVAL"), time.Minute),
		WorkerConcurrency: v.GetInt("CLOSE_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("CLOSE_WORKER_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "feedback_sessions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DYNAMO_REGION", "us-east-1")
	v.SetDefault("DYNAMO_ENDPOINT", "")
	v.SetDefault("DYNAMO_RESPONSES_TABLE", "feedback_responses")

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STATS_CACHE_ENABLED", false)
	v.SetDefault("STATS_CACHE_TTL", "1h")

	v.SetDefault("RESPONSE_STORE", ResponseStorePostgres)
	v.SetDefault("RESPONDENT_HASH_SECRET", "dev_respondent_secret")
	v.SetDefault("FETCH_TIMEOUT", "15s")

	v.SetDefault("AUTO_CLOSE_ENABLED", false)
	v.SetDefault("AUTO_CLOSE_INTERVAL", "1m")
	v.SetDefault("CLOSE_WORKER_CONCURRENCY", 2)
	v.SetDefault("CLOSE_WORKER_RETRIES", 3)
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
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
