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

	// ServerName is this homeserver's name. Media records whose origin
	// equals ServerName are local and authoritative.
	ServerName string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Media    MediaConfig
	Purge    PurgeConfig
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
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MediaConfig locates media content on disk and tunes the room media cache.
type MediaConfig struct {
	StoragePath       string
	CacheEnabled      bool
	RoomMediaCacheTTL time.Duration
}

// PurgeConfig tunes retention purge batches and the background sweeper.
type PurgeConfig struct {
	Concurrency       int
	BatchDeadline     time.Duration
	SweepEnabled      bool
	SweepInterval     time.Duration
	RemoteCacheMaxAge time.Duration
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
	cfg.ServerName = v.GetString("SERVER_NAME")

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
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Media = MediaConfig{
		StoragePath:       v.GetString("MEDIA_STORAGE_PATH"),
		CacheEnabled:      v.GetBool("MEDIA_CACHE_ENABLED"),
		RoomMediaCacheTTL: parseDuration(v.GetString("MEDIA_ROOM_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Purge = PurgeConfig{
		Concurrency:       v.GetInt("PURGE_CONCURRENCY"),
		BatchDeadline:     parseDuration(v.GetString("PURGE_BATCH_DEADLINE"), 10*time.Minute),
		SweepEnabled:      v.GetBool("PURGE_SWEEP_ENABLED"),
		SweepInterval:     parseDuration(v.GetString("PURGE_SWEEP_INTERVAL"), time.Hour),
		RemoteCacheMaxAge: parseDuration(v.GetString("PURGE_REMOTE_CACHE_MAX_AGE"), 14*24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/_admin/v1")
	v.SetDefault("SERVER_NAME", "localhost")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "media_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEDIA_STORAGE_PATH", "./media_store")
	v.SetDefault("MEDIA_CACHE_ENABLED", false)
	v.SetDefault("MEDIA_ROOM_CACHE_TTL", "5m")

	v.SetDefault("PURGE_CONCURRENCY", 4)
	v.SetDefault("PURGE_BATCH_DEADLINE", "10m")
	v.SetDefault("PURGE_SWEEP_ENABLED", false)
	v.SetDefault("PURGE_SWEEP_INTERVAL", "1h")
	v.SetDefault("PURGE_REMOTE_CACHE_MAX_AGE", "336h")
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
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
