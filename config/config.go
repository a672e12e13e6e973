package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	AllowedOrigins []string

	// Debate session timings.
	PrepDuration    time.Duration
	TurnDuration    time.Duration
	TurnsPerSide    int
	DisconnectGrace time.Duration

	// Matchmaking.
	MatchmakingInterval time.Duration
	MMRBandInitial      int
	MMRBandStep         int
	MMRBandInterval     time.Duration

	// Cloudflare R2 transcript archive (optional — archiving is disabled
	// when these are empty).
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load() // Ошибку не считаем фатальной.

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	prepSec, err := intEnv("DEBATE_PREP_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	turnSec, err := intEnv("DEBATE_TURN_SECONDS", 90)
	if err != nil {
		return nil, err
	}
	turnsPerSide, err := intEnv("DEBATE_TURNS_PER_SIDE", 6)
	if err != nil {
		return nil, err
	}
	graceSec, err := intEnv("DEBATE_DISCONNECT_GRACE_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	mmIntervalSec, err := intEnv("MATCHMAKING_INTERVAL_SECONDS", 2)
	if err != nil {
		return nil, err
	}
	bandInitial, err := intEnv("MATCHMAKING_MMR_BAND", 50)
	if err != nil {
		return nil, err
	}
	bandStep, err := intEnv("MATCHMAKING_MMR_BAND_STEP", 25)
	if err != nil {
		return nil, err
	}
	bandIntervalSec, err := intEnv("MATCHMAKING_MMR_BAND_INTERVAL_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	if prepSec <= 0 || turnSec <= 0 || turnsPerSide <= 0 || graceSec <= 0 {
		return nil, fmt.Errorf("debate timing parameters must be positive")
	}

	origins := []string{"*"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		AllowedOrigins: origins,

		PrepDuration:    time.Duration(prepSec) * time.Second,
		TurnDuration:    time.Duration(turnSec) * time.Second,
		TurnsPerSide:    turnsPerSide,
		DisconnectGrace: time.Duration(graceSec) * time.Second,

		MatchmakingInterval: time.Duration(mmIntervalSec) * time.Second,
		MMRBandInitial:      bandInitial,
		MMRBandStep:         bandStep,
		MMRBandInterval:     time.Duration(bandIntervalSec) * time.Second,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

// ArchiveEnabled reports whether transcript archiving to R2 is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
