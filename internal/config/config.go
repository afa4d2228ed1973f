package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Media storage root — audios/, images/, videos/, temp/ live under it
	MediaDir  string
	AssetsDir string // bundled assets: music/<mood>/*.mp3, defaults/*.mp4 loop clips

	// OpenAI (TTS, Whisper transcription, DALL-E slide fallback)
	OpenAIKey string

	// UnrealSpeech (fallback TTS provider)
	UnrealSpeechKey string

	// Gemini (primary slide synthesis)
	GeminiKey string

	// Search providers (panic search)
	SerperKey  string
	BraveKey   string
	PexelsKey  string
	PixabayKey string

	// Render tunables
	RenderTimeout       time.Duration // hard wall-clock budget for the encode step
	ProviderTimeout     time.Duration // per-call budget for any external provider
	ImageNominalSeconds float64       // coverage contribution of one still image
	EndBufferSeconds    float64       // visual tail after the narration ends
	CrossfadeSeconds    float64
	KenBurnsZoomRatio   float64 // zoom growth over a still clip's duration

	// Jobs
	StuckJobAge       time.Duration // reap threshold for pending/processing jobs
	MaxContentAge     time.Duration // intake skips news older than this
	MaxConcurrentJobs int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		MediaDir:           getEnv("MEDIA_DIR", "/data/media"),
		AssetsDir:          getEnv("ASSETS_DIR", "assets"),

		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		UnrealSpeechKey: getEnv("UNREAL_SPEECH_API_KEY", ""),
		GeminiKey:       getEnv("GEMINI_API_KEY", ""),
		SerperKey:       getEnv("SERPER_API_KEY", ""),
		BraveKey:        getEnv("BRAVE_API_KEY", ""),
		PexelsKey:       getEnv("PEXELS_API_KEY", ""),
		PixabayKey:      getEnv("PIXABAY_API_KEY", ""),

		RenderTimeout:       getEnvDuration("RENDER_TIMEOUT", 300*time.Second),
		ProviderTimeout:     getEnvDuration("PROVIDER_TIMEOUT", 20*time.Second),
		ImageNominalSeconds: getEnvFloat("IMAGE_NOMINAL_SECONDS", 4.0),
		EndBufferSeconds:    getEnvFloat("END_BUFFER_SECONDS", 1.5),
		CrossfadeSeconds:    getEnvFloat("CROSSFADE_SECONDS", 0.5),
		KenBurnsZoomRatio:   getEnvFloat("KEN_BURNS_ZOOM_RATIO", 0.06),

		StuckJobAge:       getEnvDuration("STUCK_JOB_AGE", time.Hour),
		MaxContentAge:     getEnvDuration("MAX_CONTENT_AGE", 48*time.Hour),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// The worker cannot narrate without at least one TTS provider; an
	// API-only deployment needs no keys at all.
	if cfg.WorkerEnabled && cfg.OpenAIKey == "" && cfg.UnrealSpeechKey == "" {
		return nil, fmt.Errorf("either OPENAI_API_KEY or UNREAL_SPEECH_API_KEY is required for narration")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
