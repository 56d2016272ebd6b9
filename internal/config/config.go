package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	PollInterval    time.Duration
	Calibration     Calibration
}

// Calibration holds every tunable threshold used by the analysis pipeline.
// Algorithm code never reads the environment directly; thresholds are
// threaded in from here so a calibration change is a one-file edit.
type Calibration struct {
	SimilarityThreshold float64       // token-set similarity above which two contents count as the same
	JudgeTimeout        time.Duration // per-prompt LLM judgment budget
	MinPromptLen        int           // prompts shorter than this are never judged
	MinPromptCount      int           // conversations below this are not analyzed
	TierExceptional     float64
	TierStrong          float64
	TierCompetent       float64
	TierDeveloping      float64
}

func DefaultCalibration() Calibration {
	return Calibration{
		SimilarityThreshold: 0.9,
		JudgeTimeout:        15 * time.Second,
		MinPromptLen:        10,
		MinPromptCount:      3,
		TierExceptional:     85,
		TierStrong:          70,
		TierCompetent:       55,
		TierDeveloping:      40,
	}
}

func Load() Config {
	cal := DefaultCalibration()
	cal.SimilarityThreshold = envFloat("LOGGER_SIMILARITY_THRESHOLD", cal.SimilarityThreshold)
	if secs := envInt("LOGGER_JUDGE_TIMEOUT_SECS", 0); secs > 0 {
		cal.JudgeTimeout = time.Duration(secs) * time.Second
	}
	cal.MinPromptCount = envInt("LOGGER_MIN_PROMPTS", cal.MinPromptCount)

	return Config{
		Port:            envInt("LOGGER_PORT", 8760),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("LOGGER_MODEL", "claude-sonnet-4-20250514"),
		PollInterval:    time.Duration(envInt("LOGGER_POLL_INTERVAL_SECS", 60)) * time.Second,
		Calibration:     cal,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
