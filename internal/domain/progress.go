package domain

import (
	"context"
	"math"
	"strings"
	"time"
)

// CompletionThreshold is the fraction at which a book counts as completed.
const CompletionThreshold = 0.95

// DefaultHistoryLimit caps history listings when no limit is given.
const DefaultHistoryLimit = 50

// ReadingProgress is one user's reading state for one book.
// CurrentPage and TotalPages are 1-based.
type ReadingProgress struct {
	UserID      string    `json:"user_id"`
	BookID      string    `json:"book_id"`
	Progress    float64   `json:"progress"`
	CurrentPage int       `json:"current_page"`
	TotalPages  int       `json:"total_pages"`
	LastRead    time.Time `json:"last_read"`
	Completed   bool      `json:"completed"`
}

// DefaultProgress is the position used when nothing was saved yet.
func DefaultProgress(userID, bookID string) *ReadingProgress {
	return &ReadingProgress{
		UserID:      userID,
		BookID:      bookID,
		Progress:    0,
		CurrentPage: 1,
	}
}

// Validate checks the invariants of a progress record.
func (p *ReadingProgress) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if strings.TrimSpace(p.BookID) == "" {
		return &ValidationError{Field: "book_id", Message: "book ID is required"}
	}
	if p.Progress < 0 || p.Progress > 1 || math.IsNaN(p.Progress) {
		return &ValidationError{Field: "progress", Message: "progress must be between 0 and 1"}
	}
	if p.CurrentPage < 1 {
		return &ValidationError{Field: "current_page", Message: "current page must be at least 1"}
	}
	if p.TotalPages < 0 {
		return &ValidationError{Field: "total_pages", Message: "total pages cannot be negative"}
	}
	return nil
}

// ClampFraction bounds a completion fraction to [0, 1]. NaN becomes 0.
func ClampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// IsCompleted derives the completed flag from a fraction.
func IsCompleted(fraction float64) bool {
	return fraction >= CompletionThreshold
}

// ReadingHistoryEntry mirrors the latest progress of a book the user has opened.
type ReadingHistoryEntry struct {
	UserID      string    `json:"user_id"`
	BookID      string    `json:"book_id"`
	Progress    float64   `json:"progress"`
	CurrentPage int       `json:"current_page"`
	TotalPages  int       `json:"total_pages"`
	LastRead    time.Time `json:"last_read"`
	Completed   bool      `json:"completed"`
}

// HistoryEntryFrom copies a progress record into a history entry.
func HistoryEntryFrom(p *ReadingProgress) *ReadingHistoryEntry {
	return &ReadingHistoryEntry{
		UserID:      p.UserID,
		BookID:      p.BookID,
		Progress:    p.Progress,
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		LastRead:    p.LastRead,
		Completed:   p.Completed,
	}
}

// HistoryItem is a history entry joined with its book.
type HistoryItem struct {
	Entry *ReadingHistoryEntry `json:"entry"`
	Book  *Book                `json:"book"`
}

// UserStats summarises a user's library activity.
type UserStats struct {
	TotalBooks       int          `json:"total_books"`
	BooksInteracted  int          `json:"books_interacted"`
	CompletedBooks   int          `json:"completed_books"`
	InProgressBooks  int          `json:"in_progress_books"`
	UnreadBooks      int          `json:"unread_books"`
	PDFBooks         int          `json:"pdf_books"`
	EPUBBooks        int          `json:"epub_books"`
	TotalReadingTime int          `json:"total_reading_time"`
	LastReadBook     *HistoryItem `json:"last_read_book"`
	AverageProgress  float64      `json:"average_progress"`
}

// ProgressUpdate is one progress save request.
type ProgressUpdate struct {
	UserID      string
	BookID      string
	Progress    float64
	CurrentPage int
	TotalPages  int
}

// ProgressRepository persists per-user progress and history rows.
type ProgressRepository interface {
	// GetProgress returns nil, nil when nothing was saved for the pair.
	GetProgress(ctx context.Context, userID, bookID string, token string) (*ReadingProgress, error)
	ListProgress(ctx context.Context, userID string, token string) ([]*ReadingProgress, error)
	SaveProgress(ctx context.Context, progress *ReadingProgress, token string) error
	DeleteProgress(ctx context.Context, userID, bookID string, token string) error

	UpsertHistory(ctx context.Context, entry *ReadingHistoryEntry, token string) error
	ListHistory(ctx context.Context, userID string, limit int, token string) ([]*ReadingHistoryEntry, error)
	DeleteHistory(ctx context.Context, userID, bookID string, token string) error
	ClearHistory(ctx context.Context, userID string, token string) error
}

// ProgressService defines the use-case operations for progress, history and stats.
type ProgressService interface {
	GetProgress(ctx context.Context, userID, bookID string, token string) (*ReadingProgress, error)
	SaveProgress(ctx context.Context, update ProgressUpdate, token string) (*ReadingProgress, error)
	ListHistory(ctx context.Context, userID string, limit int, token string) ([]*HistoryItem, error)
	RemoveFromHistory(ctx context.Context, userID, bookID string, token string) error
	ClearHistory(ctx context.Context, userID string, token string) error
	GetUserStats(ctx context.Context, userID string, token string) (*UserStats, error)
}
