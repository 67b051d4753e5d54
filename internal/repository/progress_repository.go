package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"

	"ebook-library/internal/domain"
)

const (
	progressTable = "reading_progress"
	historyTable  = "reading_history"
	// Both tables hold one row per (user, book).
	userBookConflict = "user_id,book_id"
)

// ProgressRepository implements domain.ProgressRepository on Supabase.
type ProgressRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewProgressRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.ProgressRepository {
	return &ProgressRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *ProgressRepository) GetProgress(ctx context.Context, userID, bookID string, token string) (*domain.ReadingProgress, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(progressTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get reading progress: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToProgress(rows[0]), nil
}

func (r *ProgressRepository) ListProgress(ctx context.Context, userID string, token string) ([]*domain.ReadingProgress, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(progressTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list reading progress: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := make([]*domain.ReadingProgress, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToProgress(row))
	}
	return out, nil
}

func (r *ProgressRepository) SaveProgress(ctx context.Context, progress *domain.ReadingProgress, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	data := map[string]interface{}{
		"user_id":      progress.UserID,
		"book_id":      progress.BookID,
		"progress":     progress.Progress,
		"current_page": progress.CurrentPage,
		"total_pages":  progress.TotalPages,
		"last_read":    progress.LastRead.UTC().Format(time.RFC3339),
		"completed":    progress.Completed,
	}
	_, _, err = client.From(progressTable).
		Upsert(data, userBookConflict, "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save reading progress: %w", err)
	}

	r.logger.Debug("Reading progress saved",
		"user_id", progress.UserID,
		"book_id", progress.BookID,
		"progress", progress.Progress)
	return nil
}

func (r *ProgressRepository) DeleteProgress(ctx context.Context, userID, bookID string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(progressTable).
		Delete("", "").
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete reading progress: %w", err)
	}
	return nil
}

func (r *ProgressRepository) UpsertHistory(ctx context.Context, entry *domain.ReadingHistoryEntry, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	data := map[string]interface{}{
		"user_id":      entry.UserID,
		"book_id":      entry.BookID,
		"progress":     entry.Progress,
		"current_page": entry.CurrentPage,
		"total_pages":  entry.TotalPages,
		"last_read":    entry.LastRead.UTC().Format(time.RFC3339),
		"completed":    entry.Completed,
	}
	_, _, err = client.From(historyTable).
		Upsert(data, userBookConflict, "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save reading history: %w", err)
	}
	return nil
}

func (r *ProgressRepository) ListHistory(ctx context.Context, userID string, limit int, token string) ([]*domain.ReadingHistoryEntry, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	data, _, err := client.From(historyTable).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("last_read", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list reading history: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := make([]*domain.ReadingHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.HistoryEntryFrom(rowToProgress(row)))
	}
	return out, nil
}

func (r *ProgressRepository) DeleteHistory(ctx context.Context, userID, bookID string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(historyTable).
		Delete("", "").
		Eq("user_id", userID).
		Eq("book_id", bookID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete reading history: %w", err)
	}
	return nil
}

func (r *ProgressRepository) ClearHistory(ctx context.Context, userID string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(historyTable).
		Delete("", "").
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to clear reading history: %w", err)
	}

	r.logger.Info("Reading history cleared", "user_id", userID)
	return nil
}

// rowToProgress maps a reading_progress or reading_history row; both share
// the same columns.
func rowToProgress(row map[string]interface{}) *domain.ReadingProgress {
	return &domain.ReadingProgress{
		UserID:      getString(row, "user_id"),
		BookID:      getString(row, "book_id"),
		Progress:    getFloat64(row, "progress"),
		CurrentPage: getInt(row, "current_page"),
		TotalPages:  getInt(row, "total_pages"),
		LastRead:    getTime(row, "last_read"),
		Completed:   getBool(row, "completed"),
	}
}
