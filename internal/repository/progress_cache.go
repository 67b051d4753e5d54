package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ebook-library/internal/domain"
)

const (
	progressKeyPrefix = "progress:"
	cacheOpTimeout    = 3 * time.Second
)

// CachedProgressRepository keeps the latest progress of each (user, book)
// pair in Redis in front of another ProgressRepository. Cache failures are
// logged and fall through to the underlying store.
type CachedProgressRepository struct {
	domain.ProgressRepository
	client *redis.Client
	ttl    time.Duration
	logger domain.Logger
}

func NewCachedProgressRepository(inner domain.ProgressRepository, client *redis.Client, ttl time.Duration, logger domain.Logger) *CachedProgressRepository {
	return &CachedProgressRepository{
		ProgressRepository: inner,
		client:             client,
		ttl:                ttl,
		logger:             logger,
	}
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

func progressKey(userID, bookID string) string {
	return progressKeyPrefix + userID + ":" + bookID
}

func (c *CachedProgressRepository) GetProgress(ctx context.Context, userID, bookID string, token string) (*domain.ReadingProgress, error) {
	if p, ok := c.lookup(ctx, userID, bookID); ok {
		return p, nil
	}

	p, err := c.ProgressRepository.GetProgress(ctx, userID, bookID, token)
	if err != nil {
		return nil, err
	}
	if p != nil {
		c.store(ctx, p)
	}
	return p, nil
}

func (c *CachedProgressRepository) SaveProgress(ctx context.Context, progress *domain.ReadingProgress, token string) error {
	if err := c.ProgressRepository.SaveProgress(ctx, progress, token); err != nil {
		c.evict(ctx, progress.UserID, progress.BookID)
		return err
	}
	c.store(ctx, progress)
	return nil
}

func (c *CachedProgressRepository) DeleteProgress(ctx context.Context, userID, bookID string, token string) error {
	c.evict(ctx, userID, bookID)
	return c.ProgressRepository.DeleteProgress(ctx, userID, bookID, token)
}

func (c *CachedProgressRepository) lookup(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, progressKey(userID, bookID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Progress cache read failed", "user_id", userID, "book_id", bookID, "error", err)
		return nil, false
	}

	var p domain.ReadingProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("Discarding corrupt progress cache entry", "user_id", userID, "book_id", bookID, "error", err)
		c.evict(ctx, userID, bookID)
		return nil, false
	}
	return &p, true
}

func (c *CachedProgressRepository) store(ctx context.Context, p *domain.ReadingProgress) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("Failed to encode progress for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, progressKey(p.UserID, p.BookID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Progress cache write failed", "user_id", p.UserID, "book_id", p.BookID, "error", err)
	}
}

func (c *CachedProgressRepository) evict(ctx context.Context, userID, bookID string) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.client.Del(ctx, progressKey(userID, bookID)).Err(); err != nil && err != redis.Nil {
		c.logger.Warn("Progress cache evict failed", "user_id", userID, "book_id", bookID, "error", err)
	}
}

// Ping checks connectivity to Redis.
func (c *CachedProgressRepository) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
