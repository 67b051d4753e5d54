package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ebook-library/internal/domain"
)

const defaultMaxFileSize int64 = 50 * 1024 * 1024

// FileConfig is the optional YAML overlay named by CONFIG_FILE. Environment
// variables always win over values from the file.
type FileConfig struct {
	Port           string   `yaml:"port"`
	MaxFileSize    int64    `yaml:"maxFileSize"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	SupabaseURL string `yaml:"supabaseURL"`
	SupabaseKey string `yaml:"supabaseAnonKey"`
	JWTSecret   string `yaml:"jwtSecret"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioRegion    string `yaml:"minioRegion"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`

	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`
	ProgressCacheTTL string `yaml:"progressCacheTTL"`

	ProgressDebounce     string `yaml:"progressDebounce"`
	FetchTimeout         string `yaml:"fetchTimeout"`
	SessionIdleTimeout   string `yaml:"sessionIdleTimeout"`
	SessionSweepSchedule string `yaml:"sessionSweepSchedule"`
	SessionWaitTimeout   string `yaml:"sessionWaitTimeout"`
}

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort     string
	MaxFileSize    int64
	LogLevel       string
	AllowedOrigins []string

	SupabaseURL string
	SupabaseKey string
	JWTSecret   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPublicURL string

	RedisAddr        string
	RedisPassword    string
	ProgressCacheTTL time.Duration

	ProgressDebounce     time.Duration
	FetchTimeout         time.Duration
	SessionIdleTimeout   time.Duration
	SessionSweepSchedule string
	SessionWaitTimeout   time.Duration
}

// NewConfig creates a configuration from the environment and the optional
// CONFIG_FILE overlay. An unreadable overlay is ignored; use Load to see
// the error.
func NewConfig() domain.Config {
	cfg, _ := Load(os.Getenv("CONFIG_FILE"))
	return cfg
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when empty), then the environment. The returned config is
// usable even when the file could not be read.
func Load(path string) (*AppConfig, error) {
	var (
		file    FileConfig
		fileErr error
	)
	if path != "" {
		file, fileErr = readFile(path)
	}

	cfg := &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:     getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", orDefault(file.Port, "8080"))),
		MaxFileSize:    getEnvInt64OrDefault("MAX_FILE_SIZE", orDefaultInt64(file.MaxFileSize, defaultMaxFileSize)),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", orDefault(file.LogLevel, "info")),
		AllowedOrigins: getEnvCSVOrDefault("ALLOWED_ORIGINS", file.AllowedOrigins),

		SupabaseURL: getEnvOrDefault("SUPABASE_URL", file.SupabaseURL),
		SupabaseKey: getEnvOrDefault("SUPABASE_ANON_KEY", file.SupabaseKey),
		JWTSecret:   getEnvOrDefault("JWT_SECRET", file.JWTSecret),

		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", file.MinioEndpoint),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", file.MinioAccessKey),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", file.MinioSecretKey),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", orDefault(file.MinioBucket, "books")),
		MinioRegion:    getEnvOrDefault("MINIO_REGION", orDefault(file.MinioRegion, "us-east-1")),
		MinioUseSSL:    getEnvBoolOrDefault("MINIO_USE_SSL", file.MinioUseSSL),
		MinioPublicURL: getEnvOrDefault("MINIO_PUBLIC_URL", file.MinioPublicURL),

		RedisAddr:        getEnvOrDefault("REDIS_ADDR", file.RedisAddr),
		RedisPassword:    getEnvOrDefault("REDIS_PASSWORD", file.RedisPassword),
		ProgressCacheTTL: getEnvDurationOrDefault("PROGRESS_CACHE_TTL", parseDurationOr(file.ProgressCacheTTL, 10*time.Minute)),

		ProgressDebounce:     getEnvDurationOrDefault("PROGRESS_DEBOUNCE", parseDurationOr(file.ProgressDebounce, 3*time.Second)),
		FetchTimeout:         getEnvDurationOrDefault("FETCH_TIMEOUT", parseDurationOr(file.FetchTimeout, 30*time.Second)),
		SessionIdleTimeout:   getEnvDurationOrDefault("SESSION_IDLE_TIMEOUT", parseDurationOr(file.SessionIdleTimeout, 30*time.Minute)),
		SessionSweepSchedule: getEnvOrDefault("SESSION_SWEEP_SCHEDULE", orDefault(file.SessionSweepSchedule, "@every 1m")),
		SessionWaitTimeout:   getEnvDurationOrDefault("SESSION_WAIT_TIMEOUT", parseDurationOr(file.SessionWaitTimeout, 10*time.Second)),
	}
	return cfg, fileErr
}

func readFile(path string) (FileConfig, error) {
	var file FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return FileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return file, nil
}

func (c *AppConfig) GetServerPort() string       { return c.ServerPort }
func (c *AppConfig) GetMaxFileSize() int64       { return c.MaxFileSize }
func (c *AppConfig) GetLogLevel() string         { return c.LogLevel }
func (c *AppConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }
func (c *AppConfig) GetSupabaseURL() string      { return c.SupabaseURL }
func (c *AppConfig) GetSupabaseKey() string      { return c.SupabaseKey }
func (c *AppConfig) GetJWTSecret() string        { return c.JWTSecret }
func (c *AppConfig) GetMinioEndpoint() string    { return c.MinioEndpoint }
func (c *AppConfig) GetMinioAccessKey() string   { return c.MinioAccessKey }
func (c *AppConfig) GetMinioSecretKey() string   { return c.MinioSecretKey }
func (c *AppConfig) GetMinioBucket() string      { return c.MinioBucket }
func (c *AppConfig) GetMinioRegion() string      { return c.MinioRegion }
func (c *AppConfig) GetMinioUseSSL() bool        { return c.MinioUseSSL }
func (c *AppConfig) GetMinioPublicURL() string   { return c.MinioPublicURL }
func (c *AppConfig) GetRedisAddr() string        { return c.RedisAddr }
func (c *AppConfig) GetRedisPassword() string    { return c.RedisPassword }
func (c *AppConfig) GetProgressCacheTTL() time.Duration {
	return c.ProgressCacheTTL
}

// GetProgressDebounce is the quiet period before a reader session saves progress.
func (c *AppConfig) GetProgressDebounce() time.Duration { return c.ProgressDebounce }

// GetFetchTimeout bounds archive downloads and archive opening.
func (c *AppConfig) GetFetchTimeout() time.Duration { return c.FetchTimeout }

func (c *AppConfig) GetSessionIdleTimeout() time.Duration { return c.SessionIdleTimeout }
func (c *AppConfig) GetSessionSweepSchedule() string      { return c.SessionSweepSchedule }
func (c *AppConfig) GetSessionWaitTimeout() time.Duration { return c.SessionWaitTimeout }

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	return parseDurationOr(os.Getenv(key), defaultValue)
}

func getEnvCSVOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitCSV(value)
	}
	return defaultValue
}

func parseDurationOr(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func orDefaultInt64(value, defaultValue int64) int64 {
	if value > 0 {
		return value
	}
	return defaultValue
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
