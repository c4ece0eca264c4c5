package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	CORS       CORSConfig
	LLM        LLMConfig
	STT        STTConfig
	TTS        TTSConfig
	Generation GenerationConfig
	Snapshot   SnapshotConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	FallbackProvider string
	MaxRetries       int
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // default: "http://localhost:8178"
}

type TTSConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=local
}

// GenerationConfig carries the pipeline's models and ceilings. MaxWords and
// MaxDuration are independent caps; whichever is reached first stops the
// stream and marks the transcript truncated.
type GenerationConfig struct {
	Model          string
	TitleModel     string
	MaxWords       int
	MaxDuration    time.Duration
	WordsPerMinute int
	WallClock      time.Duration // absolute watchdog on one generation run
}

type SnapshotConfig struct {
	Dir string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	maxWords, err := getEnvInt("GENERATION_MAX_WORDS", 225)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_MAX_WORDS: %w", err)
	}

	maxSeconds, err := getEnvInt("GENERATION_MAX_SECONDS", 90)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_MAX_SECONDS: %w", err)
	}

	wordsPerMinute, err := getEnvInt("GENERATION_WORDS_PER_MINUTE", 150)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_WORDS_PER_MINUTE: %w", err)
	}

	wallClockSeconds, err := getEnvInt("GENERATION_TIMEOUT_SECONDS", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_TIMEOUT_SECONDS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
		},
		Generation: GenerationConfig{
			Model:          getEnv("GENERATION_MODEL", "gpt-4o-mini"),
			TitleModel:     getEnv("TITLE_MODEL", "gpt-4o-mini"),
			MaxWords:       maxWords,
			MaxDuration:    time.Duration(maxSeconds) * time.Second,
			WordsPerMinute: wordsPerMinute,
			WallClock:      time.Duration(wallClockSeconds) * time.Second,
		},
		Snapshot: SnapshotConfig{
			Dir: getEnv("SNAPSHOT_DIR", "snapshots"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
