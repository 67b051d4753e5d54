package config

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"ebook-library/internal/domain"
	"ebook-library/internal/repository"
)

type silentLogger struct{}

func (silentLogger) Info(msg string, fields ...interface{})             {}
func (silentLogger) Error(msg string, err error, fields ...interface{}) {}
func (silentLogger) Debug(msg string, fields ...interface{})            {}
func (silentLogger) Warn(msg string, fields ...interface{})             {}

func TestNewContainerWith_WithoutOptionalBackends(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c := NewContainerWith(cfg, silentLogger{})
	defer c.Close(context.Background())

	if c.Storage != nil {
		t.Fatalf("expected storage to be disabled without an endpoint")
	}
	if c.Redis != nil {
		t.Fatalf("expected no redis client without REDIS_ADDR")
	}
	if _, ok := c.ProgressRepository.(*repository.CachedProgressRepository); ok {
		t.Fatalf("progress cache must be off without redis")
	}
	if c.AuthService == nil || c.BookService == nil || c.ProgressService == nil || c.Sessions == nil {
		t.Fatalf("expected services to be wired")
	}

	_, err = c.BookService.Upload(context.Background(), &domain.UploadInput{UserID: "u1", FileName: "a.pdf"})
	if !errors.Is(err, domain.ErrStorageNotConfigured) {
		t.Fatalf("expected uploads to be rejected, got %v", err)
	}
}

func TestNewContainerWith_RedisCache(t *testing.T) {
	clearEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	cfg, _ := Load("")

	c := NewContainerWith(cfg, silentLogger{})
	defer c.Close(context.Background())

	cached, ok := c.ProgressRepository.(*repository.CachedProgressRepository)
	if !ok {
		t.Fatalf("expected the progress repository to be cached, got %T", c.ProgressRepository)
	}
	if err := cached.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
