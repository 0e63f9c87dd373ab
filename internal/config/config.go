package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration. Populated once at process start
// from the environment and never mutated afterward.
type Config struct {
	// Server
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string
	Timezone    string

	// Database
	DatabaseURL string

	// Broker (Redis-backed durable queue)
	RedisAddr          string
	RedisPassword       string
	RedisDB             int
	QueueName           string
	VisibilityTimeout   time.Duration
	MaxAttempts         int
	BrokerPollInterval  time.Duration
	ReaperInterval      time.Duration

	// S3/Storage
	S3Endpoint    string
	S3Region      string
	S3BucketImages string
	S3BucketAudio  string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
	S3PublicURL   string

	// AI providers
	MockAI              bool
	GeminiAPIKey        string
	GeminiAPIEndpoint   string
	GeminiModelText     string
	GeminiModelImage    string
	GeminiModelTTS      string
	GeminiTTSVoice      string
	AdapterTimeoutText  time.Duration
	AdapterTimeoutImage time.Duration
	AdapterTimeoutAudio time.Duration

	// Dispatcher / orchestrator limits
	MaxTitleLength   int
	MaxPromptLength  int
	MaxSceneCount    int
	SceneParallelism int
	JobParallelism   int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Timezone:    getEnv("TZ", "UTC"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		QueueName:          getEnv("QUEUE_NAME", "stories.jobs.v1"),
		VisibilityTimeout:  getEnvDuration("VISIBILITY_TIMEOUT", 2*time.Hour),
		MaxAttempts:        clampMin(getEnvInt("MAX_ATTEMPTS", 3), 1),
		BrokerPollInterval: getEnvDuration("BROKER_POLL_INTERVAL", 5*time.Second),
		ReaperInterval:     getEnvDuration("REAPER_INTERVAL", 30*time.Second),

		S3Endpoint:     getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3BucketImages: getEnv("S3_BUCKET_IMAGES", "stories-images"),
		S3BucketAudio:  getEnv("S3_BUCKET_AUDIO", "stories-audio"),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:       getEnvBool("S3_USE_SSL", false),
		S3PublicURL:    getEnv("S3_PUBLIC_URL", ""),

		MockAI:            getEnvBool("MOCK_AI", false),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelText:   getEnv("GEMINI_MODEL_TEXT", "gemini-3-pro-preview"),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "gemini-3-pro-image-preview"),
		GeminiModelTTS:    getEnv("GEMINI_MODEL_TTS", "gemini-2.5-pro-preview-tts"),
		GeminiTTSVoice:    getEnv("GEMINI_TTS_VOICE", "Zephyr"),

		AdapterTimeoutText:  getEnvDuration("ADAPTER_TIMEOUT_TEXT", 60*time.Second),
		AdapterTimeoutImage: getEnvDuration("ADAPTER_TIMEOUT_IMAGE", 120*time.Second),
		AdapterTimeoutAudio: getEnvDuration("ADAPTER_TIMEOUT_AUDIO", 120*time.Second),

		MaxTitleLength:   getEnvInt("MAX_TITLE_LENGTH", 200),
		MaxPromptLength:  getEnvInt("MAX_PROMPT_LENGTH", 20000),
		MaxSceneCount:    getEnvInt("MAX_SCENE_COUNT", 20),
		SceneParallelism: clampMin(getEnvInt("SCENE_PARALLELISM", 3), 1),
		JobParallelism:   clampMin(getEnvInt("JOB_PARALLELISM", 1), 1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to keep config values in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
