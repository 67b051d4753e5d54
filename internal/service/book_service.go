package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ebook-library/internal/domain"
)

// DefaultMaxFileSize is the upload limit when none is configured.
const DefaultMaxFileSize = 50 * 1024 * 1024

type bookService struct {
	bookRepo     domain.BookRepository
	progressRepo domain.ProgressRepository
	storage      domain.StorageService
	inspector    domain.DocumentInspector
	logger       domain.Logger
	maxFileSize  int64
	now          func() time.Time
}

// NewBookService wires the book use cases. storage may be nil when object
// storage is not configured; uploads then fail with ErrStorageNotConfigured.
func NewBookService(
	bookRepo domain.BookRepository,
	progressRepo domain.ProgressRepository,
	storage domain.StorageService,
	inspector domain.DocumentInspector,
	logger domain.Logger,
	maxFileSize int64,
) domain.BookService {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &bookService{
		bookRepo:     bookRepo,
		progressRepo: progressRepo,
		storage:      storage,
		inspector:    inspector,
		logger:       logger,
		maxFileSize:  maxFileSize,
		now:          time.Now,
	}
}

func (s *bookService) Upload(ctx context.Context, in *domain.UploadInput) (*domain.Book, error) {
	if s.storage == nil {
		return nil, domain.ErrStorageNotConfigured
	}
	if in.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, in.Size, s.maxFileSize)
	}
	fileType, ok := domain.DetectFileType(in.ContentType, in.FileName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, in.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", domain.ErrFileTooLarge, s.maxFileSize)
	}

	info, err := s.inspector.Inspect(fileType, data)
	if err != nil {
		s.logger.Warn("Rejected unreadable upload", "file_name", in.FileName, "error", err)
		return nil, err
	}

	now := s.now()
	fileName := sanitizeFileName(in.FileName)
	path := fmt.Sprintf("users/%s/books/%d_%s", in.UserID, now.UnixMilli(), fileName)

	result := s.storage.Upload(ctx, path, bytes.NewReader(data), int64(len(data)), fileType)
	if result == nil || !result.Success {
		msg := "storage returned no result"
		if result != nil {
			msg = result.Message
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUploadFailed, msg)
	}

	book := &domain.Book{
		ID:          newBookID(now),
		Title:       titleFromFileName(fileName, info.Title),
		FileName:    fileName,
		FileSize:    int64(len(data)),
		FileType:    fileType,
		DownloadURL: result.DownloadURL,
		StoragePath: result.StoragePath,
		UploadedBy:  in.UserID,
		UploadedAt:  now,
		IsPublic:    true,
		PageCount:   info.PageCount,
	}
	if err := book.Validate(); err != nil {
		s.removeObject(ctx, path)
		return nil, err
	}
	if err := s.bookRepo.Create(ctx, book, in.Token); err != nil {
		s.removeObject(ctx, path)
		return nil, err
	}

	s.logger.Info("Book uploaded",
		"book_id", book.ID,
		"user_id", in.UserID,
		"file_type", fileType,
		"size", book.FileSize,
		"pages", book.PageCount)
	return book, nil
}

func (s *bookService) removeObject(ctx context.Context, path string) {
	if err := s.storage.Delete(ctx, path); err != nil {
		s.logger.Warn("Failed to remove orphaned object", "path", path, "error", err)
	}
}

func (s *bookService) GetBook(ctx context.Context, id string, token string) (*domain.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, domain.ErrBookNotFound
	}
	return book, nil
}

// ListLibrary returns every book merged with the caller's progress, then
// filtered, searched and sorted.
func (s *bookService) ListLibrary(ctx context.Context, userID string, query domain.LibraryQuery, token string) ([]*domain.LibraryItem, error) {
	var (
		books    []*domain.Book
		progress []*domain.ReadingProgress
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
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := mergeLibrary(userID, books, progress)
	items = filterLibrary(items, query.Filter, s.now())
	items = searchLibrary(items, query.Search)
	sortLibrary(items, query.Sort)
	return items, nil
}

// DeleteBook removes a book and the uploader's own progress and history.
// Rows other users hold for the book are left in place; history listings
// skip them.
func (s *bookService) DeleteBook(ctx context.Context, userID, bookID string, token string) error {
	book, err := s.GetBook(ctx, bookID, token)
	if err != nil {
		return err
	}
	if book.UploadedBy != userID {
		return domain.ErrNotBookOwner
	}

	if err := s.bookRepo.Delete(ctx, bookID, token); err != nil {
		return err
	}
	if s.storage != nil && book.StoragePath != "" {
		s.removeObject(ctx, book.StoragePath)
	}
	if err := s.progressRepo.DeleteProgress(ctx, userID, bookID, token); err != nil {
		s.logger.Warn("Failed to delete progress of deleted book", "book_id", bookID, "error", err)
	}
	if err := s.progressRepo.DeleteHistory(ctx, userID, bookID, token); err != nil {
		s.logger.Warn("Failed to delete history of deleted book", "book_id", bookID, "error", err)
	}

	s.logger.Info("Book deleted", "book_id", bookID, "user_id", userID)
	return nil
}

func (s *bookService) RecordView(ctx context.Context, bookID string, token string) error {
	book, err := s.GetBook(ctx, bookID, token)
	if err != nil {
		return err
	}
	return s.bookRepo.UpdateCounters(ctx, bookID, book.ViewCount+1, book.DownloadCount, token)
}

// DownloadURL counts a download and returns a fresh link to the file.
func (s *bookService) DownloadURL(ctx context.Context, bookID string, token string) (string, error) {
	book, err := s.GetBook(ctx, bookID, token)
	if err != nil {
		return "", err
	}
	link, err := s.ContentURL(ctx, book)
	if err != nil {
		return "", err
	}
	if err := s.bookRepo.UpdateCounters(ctx, bookID, book.ViewCount, book.DownloadCount+1, token); err != nil {
		s.logger.Warn("Failed to count download", "book_id", bookID, "error", err)
	}
	return link, nil
}

// ContentURL resolves a readable link for the book's file. Stored objects
// get a freshly signed URL; the saved download URL is the fallback.
func (s *bookService) ContentURL(ctx context.Context, book *domain.Book) (string, error) {
	if s.storage != nil && book.StoragePath != "" {
		return s.storage.URL(ctx, book.StoragePath)
	}
	if book.DownloadURL != "" {
		return book.DownloadURL, nil
	}
	return "", domain.ErrStorageNotConfigured
}

// newBookID is the upload time in milliseconds followed by nine random
// base-36 characters.
func newBookID(now time.Time) string {
	id := uuid.New()
	suffix := new(big.Int).SetBytes(id[:]).Text(36)
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + suffix[:9]
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "upload"
	}
	return name
}

func titleFromFileName(fileName, fallback string) string {
	title := strings.TrimSpace(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	if title != "" {
		return title
	}
	if fallback != "" {
		return fallback
	}
	return "Untitled"
}
