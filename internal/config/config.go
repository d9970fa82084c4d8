package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default playback ratio for the vinyl effect: a 45 rpm record played at 33 rpm.
const defaultSpeedRatio = float64(33) / 45

type Config struct {
	App struct {
		Env     string
		DataDir string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Queue struct {
		TaskLimit         int
		ReconcileInterval time.Duration
	}

	Throttle struct {
		Rate time.Duration
	}

	Audio struct {
		SpeedRatio  float64
		PitchRatio  float64
		MaxFileSize int64
		FilePostfix string
		FFmpegPath  string
	}

	Selector struct {
		CycleTTL time.Duration
	}

	Moderation struct {
		ModeratorID uint64
	}
}

func New() *Config {
	cfg := &Config{}

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "production")
	cfg.App.DataDir = getEnvDefault("DATA_DIR", "./data")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "slowtunes")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "slowtunes")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// Queue / admission
	cfg.Queue.TaskLimit = getEnvInt("TASK_LIMIT", 2)
	cfg.Queue.ReconcileInterval = getEnvDuration("QUEUE_RECONCILE_INTERVAL", 5*time.Minute)

	// Throttling
	cfg.Throttle.Rate = getEnvDuration("THROTTLE_RATE", 2*time.Second)

	// Audio processing
	cfg.Audio.SpeedRatio = getEnvFloat("SPEED_RATIO", defaultSpeedRatio)
	cfg.Audio.PitchRatio = -12 * math.Log2(1/cfg.Audio.SpeedRatio)
	cfg.Audio.MaxFileSize = int64(getEnvInt("MAX_FILE_SIZE", 20<<20))
	cfg.Audio.FilePostfix = getEnvDefault("FILE_POSTFIX", "_slowed_down.mp3")
	cfg.Audio.FFmpegPath = getEnvDefault("FFMPEG_PATH", "ffmpeg")

	// Random-tune selector
	cfg.Selector.CycleTTL = getEnvDuration("CYCLE_TTL", 30*24*time.Hour)

	// Moderation
	if id, err := strconv.ParseUint(strings.TrimSpace(os.Getenv("MODERATOR_ID")), 10, 64); err == nil {
		cfg.Moderation.ModeratorID = id
	}

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k))); err == nil {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
