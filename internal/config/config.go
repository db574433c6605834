package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"zupgo/internal/utils"
)

type Config struct {
	Port          string        `env:"PORT" env-default:"46644"`
	LogLevelName  string        `env:"LOG_LEVEL" env-default:"INFO"`
	DataDir       string        `env:"DATA_DIR" env-default:"./data"`
	DownloadDir   string        `env:"DOWNLOAD_DIR" env-default:"./downloads"`
	MaxConcurrent int           `env:"MAX_CONCURRENT" env-default:"8"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" env-default:"30s"`
	MaxBodySize   string        `env:"MAX_BODY_SIZE" env-default:"64 MB"`
	MaxBatchSize  int           `env:"MAX_BATCH_SIZE" env-default:"10000"`
	ViewerCommand string        `env:"VIEWER_COMMAND"`

	LogLevel     slog.Level
	MaxBodyBytes int64
}

// LoadConfig reads the environment, after loading an optional .env file
// named by ENV_FILE (default ".env").
func LoadConfig() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg.LogLevel = parseLevel(cfg.LogLevelName)

	size, err := utils.ParseSize(cfg.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("MAX_BODY_SIZE: %w", err)
	}
	cfg.MaxBodyBytes = size

	if cfg.MaxConcurrent <= 0 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT must be positive, got %d", cfg.MaxConcurrent)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
