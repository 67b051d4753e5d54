package domain

import "time"

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetAllowedOrigins() []string

	GetSupabaseURL() string
	GetSupabaseKey() string
	GetJWTSecret() string

	GetMinioEndpoint() string
	GetMinioAccessKey() string
	GetMinioSecretKey() string
	GetMinioBucket() string
	GetMinioRegion() string
	GetMinioUseSSL() bool
	GetMinioPublicURL() string

	GetRedisAddr() string
	GetRedisPassword() string
	GetProgressCacheTTL() time.Duration

	GetProgressDebounce() time.Duration
	GetFetchTimeout() time.Duration
	GetSessionIdleTimeout() time.Duration
	GetSessionSweepSchedule() string
	GetSessionWaitTimeout() time.Duration
}
