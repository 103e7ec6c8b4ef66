package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AWS           AWSConfig
	Cache         CacheConfig
	Transcription TranscriptionConfig
	Upload        UploadConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket that carries both the videos/ and metadata/ prefixes.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string // optional, e.g. http://localhost:9000 for MinIO
	PublicBucket         bool   // true = plain object URLs instead of presigned ones
	PresignExpireMinutes int
}

// CacheConfig bounds the ephemeral video cache.
type CacheConfig struct {
	TTLMinutes int // <= 0 disables expiry
	MaxEntries int // <= 0 disables the size bound
}

// TranscriptionConfig holds settings for the remote speech-to-text service.
type TranscriptionConfig struct {
	APIKey       string
	BaseURL      string
	Language     string
	PollSeconds  int
	SpeakerLabel bool
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	MaxBytes int64
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 0),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:               getEnv("AWS_S3_BUCKET", "videoscribe-uploads"),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			PublicBucket:         getEnvBool("AWS_S3_PUBLIC", false),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 7*24*60),
		},
		Cache: CacheConfig{
			TTLMinutes: getEnvInt("CACHE_TTL_MINUTES", 24*60),
			MaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
		},
		Transcription: TranscriptionConfig{
			APIKey:       getEnv("TRANSCRIPTION_API_KEY", ""),
			BaseURL:      strings.TrimRight(getEnv("TRANSCRIPTION_BASE_URL", "https://api.assemblyai.com"), "/"),
			Language:     getEnv("TRANSCRIPTION_LANGUAGE", "en"),
			PollSeconds:  getEnvInt("TRANSCRIPTION_POLL_SECONDS", 3),
			SpeakerLabel: getEnvBool("TRANSCRIPTION_SPEAKER_LABELS", true),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 250*1024*1024)),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
