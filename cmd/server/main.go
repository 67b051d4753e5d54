package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ebook-library/internal/config"
	"ebook-library/internal/handler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container := config.NewContainer()
	cfg := container.Config

	if err := container.SupabaseClient.Initialize(); err != nil {
		container.Logger.Warn("Supabase client not initialized", "error", err)
	}
	if err := container.Sessions.StartSweeper(cfg.GetSessionSweepSchedule()); err != nil {
		container.Logger.Error("Failed to start session sweeper", err)
		os.Exit(1)
	}

	authMiddleware := handler.NewAuthMiddleware(container.AuthService, container.Logger)

	// Router
	router := handler.NewRouter(handler.Handlers{
		Auth:     handler.NewAuthHandler(),
		Books:    handler.NewBookHandler(container.BookService, container.Logger, cfg.GetMaxFileSize()),
		Progress: handler.NewProgressHandler(container.ProgressService, container.Logger),
		Sessions: handler.NewSessionHandler(container.Sessions, container.Logger, cfg.GetSessionWaitTimeout()),
	}, authMiddleware.Middleware, cfg.GetAllowedOrigins())

	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Event streams end once their sessions close.
	server.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		container.Sessions.Shutdown(ctx)
	})

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Warn("Forcing server close", "error", err)
		_ = server.Close()
	}
	container.Close(ctx)

	container.Logger.Info("Server exited")
}
