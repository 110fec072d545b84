package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Tools     ToolsConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port        string `validate:"required"`
	Env         string
	BodyLimitMB int `validate:"min=1"`
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int
}

// AuthConfig enables bearer auth when a secret is set; empty leaves the API open.
type AuthConfig struct {
	Secret string
}

type RateLimitConfig struct {
	UploadPerHour int `validate:"min=1"`
}

type StorageConfig struct {
	UploadsDir string `validate:"required"`
	WorkDir    string `validate:"required"`
}

type ToolsConfig struct {
	DemucsBin     string `validate:"required"`
	DemucsModel   string `validate:"required"`
	BasicPitchBin string `validate:"required"`
	MuseScoreBin  string `validate:"required"`
}

type JobsConfig struct {
	Concurrency    int `validate:"min=1"`
	RetentionHours int `validate:"min=0"`
}

// Retention returns how long job records are kept; zero means forever.
func (j JobsConfig) Retention() time.Duration {
	return time.Duration(j.RetentionHours) * time.Hour
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.body_limit_mb", 100)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("ratelimit.upload_per_hour", 20)
	viper.SetDefault("storage.uploads_dir", "./data/uploads")
	viper.SetDefault("storage.work_dir", "./data/processed")
	viper.SetDefault("tools.demucs_bin", "demucs")
	viper.SetDefault("tools.demucs_model", "htdemucs_6s")
	viper.SetDefault("tools.basic_pitch_bin", "basic-pitch")
	viper.SetDefault("tools.musescore_bin", "mscore")
	viper.SetDefault("jobs.concurrency", 2)
	viper.SetDefault("jobs.retention_hours", 0)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			BodyLimitMB: viper.GetInt("server.body_limit_mb"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Secret: viper.GetString("auth.secret"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		Storage: StorageConfig{
			UploadsDir: viper.GetString("storage.uploads_dir"),
			WorkDir:    viper.GetString("storage.work_dir"),
		},
		Tools: ToolsConfig{
			DemucsBin:     viper.GetString("tools.demucs_bin"),
			DemucsModel:   viper.GetString("tools.demucs_model"),
			BasicPitchBin: viper.GetString("tools.basic_pitch_bin"),
			MuseScoreBin:  viper.GetString("tools.musescore_bin"),
		},
		Jobs: JobsConfig{
			Concurrency:    viper.GetInt("jobs.concurrency"),
			RetentionHours: viper.GetInt("jobs.retention_hours"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
