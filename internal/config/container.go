package config

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
	"ebook-library/internal/infra/supabase"
	"ebook-library/internal/reader"
	"ebook-library/internal/repository"
	"ebook-library/internal/service"
	"ebook-library/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient
	Redis          *redis.Client

	BookRepository     domain.BookRepository
	ProgressRepository domain.ProgressRepository
	Storage            domain.StorageService

	AuthService     domain.AuthService
	BookService     domain.BookService
	ProgressService domain.ProgressService
	Sessions        *reader.Manager
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	cfg, cfgErr := Load(os.Getenv("CONFIG_FILE"))
	appLogger := logger.NewLogger(cfg.GetLogLevel())
	if cfgErr != nil {
		appLogger.Warn("Config file ignored", "path", os.Getenv("CONFIG_FILE"), "error", cfgErr)
	}
	return NewContainerWith(cfg, appLogger)
}

// NewContainerWith wires every dependency from cfg.
func NewContainerWith(cfg domain.Config, appLogger domain.Logger) *Container {
	supabaseClient := supabase.NewSupabaseClient(cfg, appLogger)

	bookRepo := repository.NewBookRepository(supabaseClient, appLogger)
	var progressRepo domain.ProgressRepository = repository.NewProgressRepository(supabaseClient, appLogger)

	var redisClient *redis.Client
	if addr := cfg.GetRedisAddr(); addr != "" {
		redisClient = repository.NewRedisClient(addr, cfg.GetRedisPassword())
		cached := repository.NewCachedProgressRepository(progressRepo, redisClient, cfg.GetProgressCacheTTL(), appLogger)
		if err := cached.Ping(context.Background()); err != nil {
			appLogger.Warn("Redis unreachable, progress cache will retry per request", "addr", addr, "error", err)
		}
		progressRepo = cached
	}

	var storage domain.StorageService
	minioStorage, err := service.NewMinioStorage(service.MinioConfig{
		Endpoint:  cfg.GetMinioEndpoint(),
		AccessKey: cfg.GetMinioAccessKey(),
		SecretKey: cfg.GetMinioSecretKey(),
		Bucket:    cfg.GetMinioBucket(),
		Region:    cfg.GetMinioRegion(),
		UseSSL:    cfg.GetMinioUseSSL(),
		PublicURL: cfg.GetMinioPublicURL(),
	}, appLogger)
	if err != nil {
		appLogger.Warn("Object storage disabled, uploads will be rejected", "error", err)
	} else {
		storage = minioStorage
	}

	authService := service.NewAuthService(supabaseClient, cfg.GetJWTSecret(), appLogger)
	bookService := service.NewBookService(
		bookRepo,
		progressRepo,
		storage,
		service.NewDocumentInspector(appLogger),
		appLogger,
		cfg.GetMaxFileSize(),
	)
	progressService := service.NewProgressService(progressRepo, bookRepo, appLogger)

	sessions := reader.NewManager(bookService, progressService, reader.Options{
		Fetcher:      epub.NewHTTPFetcher(cfg.GetFetchTimeout()),
		Logger:       appLogger,
		Debounce:     cfg.GetProgressDebounce(),
		FetchTimeout: cfg.GetFetchTimeout(),
	}, cfg.GetSessionIdleTimeout())

	return &Container{
		Config:             cfg,
		Logger:             appLogger,
		SupabaseClient:     supabaseClient,
		Redis:              redisClient,
		BookRepository:     bookRepo,
		ProgressRepository: progressRepo,
		Storage:            storage,
		AuthService:        authService,
		BookService:        bookService,
		ProgressService:    progressService,
		Sessions:           sessions,
	}
}

// Close stops every reader session, flushing pending progress, and
// releases connections.
func (c *Container) Close(ctx context.Context) {
	c.Sessions.Shutdown(ctx)
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", "error", err)
		}
	}
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetSupabaseClient returns the Supabase client instance
func (c *Container) GetSupabaseClient() domain.SupabaseClient {
	return c.SupabaseClient
}
