package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Inference InferenceConfig
	Detector  DetectorConfig
	Matching  MatchingConfig
	Verifier  VerifierConfig
	Telegram  TelegramConfig
	Twilio    TwilioConfig
	Database  DatabaseConfig
	Uploads   UploadsConfig
}

// InferenceConfig points at the model inference sidecar that serves both
// object detection and person re-identification embeddings.
type InferenceConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per-request timeout
}

type DetectorConfig struct {
	ScoreFloor  float64 // minimum detection confidence (default 0.25)
	ClassesPath string  // optional override for the class bucket file
}

type MatchingConfig struct {
	SimilarityThreshold float64 // same-person decision threshold (default 0.85)
	RecentDropoffLimit  int     // how many recent drop-offs a pickup is compared against
}

// VerifierConfig configures the optional secondary vision verifier.
// Provider selects the backend: "openai", "gemini" or "http" (any
// OpenAI-compatible chat endpoint). Empty means disabled.
type VerifierConfig struct {
	Provider    string
	OpenAIToken string
	GeminiKey   string
	URL         string // base URL for the "http" provider
	Model       string
	Timeout     time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; takes precedence
	SQLitePath   string // path to a local SQLite database file
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
}

type UploadsConfig struct {
	Dir           string // directory for uploaded evidence files
	MaxUploadSize int64  // maximum upload size in bytes
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Inference: InferenceConfig{
			URL:     envString("INFERENCE_URL", "http://localhost:8000"),
			Timeout: time.Duration(envInt("INFERENCE_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Detector: DetectorConfig{
			ScoreFloor:  envFloat("DETECTOR_SCORE_FLOOR", 0.25),
			ClassesPath: os.Getenv("DETECTOR_CLASSES_PATH"),
		},
		Matching: MatchingConfig{
			SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.85),
			RecentDropoffLimit:  envInt("RECENT_DROPOFF_LIMIT", 10),
		},
		Verifier: VerifierConfig{
			Provider:    os.Getenv("VERIFIER_PROVIDER"),
			OpenAIToken: os.Getenv("OPENAI_TOKEN"),
			GeminiKey:   os.Getenv("GEMINI_API_KEY"),
			URL:         os.Getenv("VERIFIER_URL"),
			Model:       os.Getenv("VERIFIER_MODEL"),
			Timeout:     time.Duration(envInt("VERIFIER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
			ToNumber:   os.Getenv("TWILIO_ALERT_NUMBER"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			SQLitePath:   os.Getenv("SQLITE_PATH"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Uploads: UploadsConfig{
			Dir:           envString("UPLOADS_DIR", "uploads"),
			MaxUploadSize: int64(envInt("MAX_UPLOAD_SIZE_MB", 100)) << 20,
		},
	}
}
