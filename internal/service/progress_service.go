package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ebook-library/internal/domain"
)

// statsHistoryLimit bounds the history read used for statistics.
const statsHistoryLimit = 1000

type progressService struct {
	progressRepo domain.ProgressRepository
	bookRepo     domain.BookRepository
	logger       domain.Logger
	now          func() time.Time
}

func NewProgressService(
	progressRepo domain.ProgressRepository,
	bookRepo domain.BookRepository,
	logger domain.Logger,
) domain.ProgressService {
	return &progressService{
		progressRepo: progressRepo,
		bookRepo:     bookRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// GetProgress returns nil, nil when the user has not opened the book.
func (s *progressService) GetProgress(ctx context.Context, userID, bookID string, token string) (*domain.ReadingProgress, error) {
	return s.progressRepo.GetProgress(ctx, userID, bookID, token)
}

// SaveProgress clamps and stores a position, and mirrors it into the
// reading history once the user is past the start.
func (s *progressService) SaveProgress(ctx context.Context, update domain.ProgressUpdate, token string) (*domain.ReadingProgress, error) {
	if strings.TrimSpace(update.UserID) == "" {
		return nil, &domain.ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if strings.TrimSpace(update.BookID) == "" {
		return nil, &domain.ValidationError{Field: "book_id", Message: "book ID is required"}
	}

	fraction := domain.ClampFraction(update.Progress)
	total := update.TotalPages
	if total < 0 {
		total = 0
	}
	page := update.CurrentPage
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}

	p := &domain.ReadingProgress{
		UserID:      update.UserID,
		BookID:      update.BookID,
		Progress:    fraction,
		CurrentPage: page,
		TotalPages:  total,
		LastRead:    s.now().UTC(),
		Completed:   domain.IsCompleted(fraction),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.progressRepo.SaveProgress(ctx, p, token); err != nil {
		return nil, err
	}

	if fraction > 0 {
		if err := s.progressRepo.UpsertHistory(ctx, domain.HistoryEntryFrom(p), token); err != nil {
			s.logger.Warn("Failed to update reading history", "user_id", p.UserID, "book_id", p.BookID, "error", err)
		}
	}
	return p, nil
}

// ListHistory returns the most recent history joined with books. Entries
// whose book no longer exists are skipped.
func (s *progressService) ListHistory(ctx context.Context, userID string, limit int, token string) ([]*domain.HistoryItem, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	entries, books, err := s.historyWithBooks(ctx, userID, limit, token)
	if err != nil {
		return nil, err
	}
	return joinHistory(entries, books), nil
}

func (s *progressService) historyWithBooks(ctx context.Context, userID string, limit int, token string) ([]*domain.ReadingHistoryEntry, map[string]*domain.Book, error) {
	var (
		entries []*domain.ReadingHistoryEntry
		books   []*domain.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.progressRepo.ListHistory(gctx, userID, limit, token)
		return err
	})
	g.Go(func() error {
		var err error
		books, err = s.bookRepo.List(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return entries, indexBooks(books), nil
}

func joinHistory(entries []*domain.ReadingHistoryEntry, books map[string]*domain.Book) []*domain.HistoryItem {
	items := make([]*domain.HistoryItem, 0, len(entries))
	for _, e := range entries {
		b, ok := books[e.BookID]
		if !ok {
			continue
		}
		items = append(items, &domain.HistoryItem{Entry: e, Book: b})
	}
	return items
}

func indexBooks(books []*domain.Book) map[string]*domain.Book {
	m := make(map[string]*domain.Book, len(books))
	for _, b := range books {
		m[b.ID] = b
	}
	return m
}

func (s *progressService) RemoveFromHistory(ctx context.Context, userID, bookID string, token string) error {
	return s.progressRepo.DeleteHistory(ctx, userID, bookID, token)
}

// ClearHistory empties the history list. Saved positions are kept so
// reopening a book still resumes where the user left off.
func (s *progressService) ClearHistory(ctx context.Context, userID string, token string) error {
	return s.progressRepo.ClearHistory(ctx, userID, token)
}

func (s *progressService) GetUserStats(ctx context.Context, userID string, token string) (*domain.UserStats, error) {
	var (
		books    []*domain.Book
		progress []*domain.ReadingProgress
		entries  []*domain.ReadingHistoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = s.bookRepo.List(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.progressRepo.ListProgress(gctx, userID, token)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.progressRepo.ListHistory(gctx, userID, statsHistoryLimit, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return computeStats(books, progress, entries), nil
}

func computeStats(books []*domain.Book, progress []*domain.ReadingProgress, entries []*domain.ReadingHistoryEntry) *domain.UserStats {
	byID := indexBooks(books)
	stats := &domain.UserStats{TotalBooks: len(books)}
	for _, b := range books {
		switch {
		case b.IsPDF():
			stats.PDFBooks++
		case b.IsEPUB():
			stats.EPUBBooks++
		}
	}

	var sum float64
	for _, p := range progress {
		if _, ok := byID[p.BookID]; !ok || p.Progress <= 0 {
			continue
		}
		stats.BooksInteracted++
		sum += p.Progress
		if p.Completed {
			stats.CompletedBooks++
		} else if p.Progress < 1 {
			stats.InProgressBooks++
		}
	}
	stats.UnreadBooks = stats.TotalBooks - stats.BooksInteracted
	if stats.BooksInteracted > 0 {
		stats.AverageProgress = sum / float64(stats.BooksInteracted)
	}

	history := joinHistory(entries, byID)
	stats.TotalReadingTime = len(history)
	if len(history) > 0 {
		stats.LastReadBook = history[0]
	}
	return stats
}
