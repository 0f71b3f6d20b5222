package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredential indicates a required secret is absent from the
// environment.
var ErrMissingCredential = errors.New("missing credential")

// Config contains all runtime settings for the receptionist console.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	GeminiAPIKey    string
	GeminiWSBaseURL string
	LiveModel       string
	VoiceName       string

	EmergencyGraceDelay time.Duration
	AnalysisTimeout     time.Duration

	DatabaseURL   string
	AudioArchive  string
	MockTransport bool
}

// Load reads a .env file when present, then the environment, and applies
// safe defaults. GEMINI_API_KEY is required unless the mock transport is
// selected.
func Load() (Config, error) {
	// missing .env is fine, the environment still wins
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "deskline"),
		GeminiWSBaseURL:     envOrDefault("GEMINI_WS_BASE_URL", "wss://generativelanguage.googleapis.com"),
		LiveModel:           envOrDefault("GEMINI_LIVE_MODEL", "models/gemini-2.5-flash-native-audio-preview-12-2025"),
		VoiceName:           envOrDefault("GEMINI_VOICE_NAME", "Zephyr"),
		GeminiAPIKey:        trimSpaceEnv("GEMINI_API_KEY"),
		DatabaseURL:         trimSpaceEnv("DATABASE_URL"),
		AudioArchive:        trimSpaceEnv("AUDIO_ARCHIVE_DIR"),
		ShutdownTimeout:     15 * time.Second,
		EmergencyGraceDelay: 3 * time.Second,
		AnalysisTimeout:     30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EmergencyGraceDelay, err = durationFromEnv("EMERGENCY_GRACE_DELAY", cfg.EmergencyGraceDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalysisTimeout, err = durationFromEnv("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MockTransport, err = boolFromEnv("APP_MOCK_TRANSPORT", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.EmergencyGraceDelay <= 0 {
		return Config{}, fmt.Errorf("EMERGENCY_GRACE_DELAY must be positive")
	}
	if cfg.AnalysisTimeout <= 0 {
		return Config{}, fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if cfg.GeminiAPIKey == "" && !cfg.MockTransport {
		return Config{}, fmt.Errorf("%w: GEMINI_API_KEY is required", ErrMissingCredential)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimSpaceEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimSpaceEnv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
	return b, nil
}
