package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Engine    EngineConfig
	Converter ConverterConfig
	R2        R2Config
	RateLimit RateLimitConfig
	Upload    UploadConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EngineConfig struct {
	Workers         int
	Capacity        int
	TTLHours        int
	SweepBatch      int
	ShutdownTimeout int // seconds
}

type ConverterConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

type RateLimitConfig struct {
	SubmitPerHour int
	StatusPerMin  int
}

type UploadConfig struct {
	MaxFileSizeMB int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("engine.workers", "ENGINE_WORKERS")
	_ = viper.BindEnv("engine.capacity", "ENGINE_CAPACITY")
	_ = viper.BindEnv("engine.ttl_hours", "ENGINE_TTL_HOURS")
	_ = viper.BindEnv("engine.sweep_batch", "ENGINE_SWEEP_BATCH")
	_ = viper.BindEnv("engine.shutdown_timeout", "ENGINE_SHUTDOWN_TIMEOUT")
	_ = viper.BindEnv("converter.service_url", "CONVERTER_SERVICE_URL")
	_ = viper.BindEnv("converter.timeout", "CONVERTER_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = viper.BindEnv("ratelimit.status_per_min", "RATELIMIT_STATUS_PER_MIN")
	_ = viper.BindEnv("upload.max_file_size_mb", "MAX_FILE_SIZE_MB")

	// Defaults
	viper.SetDefault("server.port", "8083")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("engine.workers", 2)
	viper.SetDefault("engine.capacity", 100)
	viper.SetDefault("engine.ttl_hours", 24)
	viper.SetDefault("engine.sweep_batch", 50)
	viper.SetDefault("engine.shutdown_timeout", 30)
	viper.SetDefault("converter.timeout", 300)
	viper.SetDefault("ratelimit.submit_per_hour", 60)
	viper.SetDefault("ratelimit.status_per_min", 120)
	viper.SetDefault("upload.max_file_size_mb", 100)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Engine: EngineConfig{
			Workers:         viper.GetInt("engine.workers"),
			Capacity:        viper.GetInt("engine.capacity"),
			TTLHours:        viper.GetInt("engine.ttl_hours"),
			SweepBatch:      viper.GetInt("engine.sweep_batch"),
			ShutdownTimeout: viper.GetInt("engine.shutdown_timeout"),
		},
		Converter: ConverterConfig{
			ServiceURL: viper.GetString("converter.service_url"),
			Timeout:    viper.GetInt("converter.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: viper.GetInt("ratelimit.submit_per_hour"),
			StatusPerMin:  viper.GetInt("ratelimit.status_per_min"),
		},
		Upload: UploadConfig{
			MaxFileSizeMB: viper.GetInt("upload.max_file_size_mb"),
		},
	}

	return cfg, nil
}
