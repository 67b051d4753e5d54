package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"

	"ebook-library/internal/domain"
)

const booksTable = "books"

// BookRepository implements domain.BookRepository on the Supabase books table.
type BookRepository struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

func NewBookRepository(supabaseClient domain.SupabaseClient, logger domain.Logger) domain.BookRepository {
	return &BookRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(booksTable).Insert(bookToRow(book), false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	r.logger.Info("Book created successfully", "book_id", book.ID, "uploaded_by", book.UploadedBy)
	return nil
}

func (r *BookRepository) GetByID(ctx context.Context, id string, token string) (*domain.Book, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(booksTable).
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToBook(rows[0]), nil
}

func (r *BookRepository) List(ctx context.Context, token string) ([]*domain.Book, error) {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to get client with token: %w", err)
	}

	data, _, err := client.From(booksTable).
		Select("*", "", false).
		Order("uploaded_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	books := make([]*domain.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, rowToBook(row))
	}
	return books, nil
}

func (r *BookRepository) Delete(ctx context.Context, id string, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	_, _, err = client.From(booksTable).
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	r.logger.Info("Book deleted successfully", "book_id", id)
	return nil
}

func (r *BookRepository) UpdateCounters(ctx context.Context, id string, viewCount, downloadCount int, token string) error {
	client, err := r.supabaseClient.GetClientWithToken(token)
	if err != nil {
		return fmt.Errorf("failed to get client with token: %w", err)
	}

	data := map[string]interface{}{
		"view_count":     viewCount,
		"download_count": downloadCount,
	}
	_, _, err = client.From(booksTable).
		Update(data, "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update book counters: %w", err)
	}
	return nil
}

func bookToRow(book *domain.Book) map[string]interface{} {
	row := map[string]interface{}{
		"id":             book.ID,
		"title":          book.Title,
		"file_name":      book.FileName,
		"file_size":      book.FileSize,
		"file_type":      book.FileType,
		"download_url":   book.DownloadURL,
		"storage_path":   book.StoragePath,
		"uploaded_by":    book.UploadedBy,
		"uploaded_at":    book.UploadedAt.UTC().Format(time.RFC3339),
		"is_public":      book.IsPublic,
		"view_count":     book.ViewCount,
		"download_count": book.DownloadCount,
	}
	if book.PageCount > 0 {
		row["page_count"] = book.PageCount
	}
	return row
}

func rowToBook(row map[string]interface{}) *domain.Book {
	return &domain.Book{
		ID:            getString(row, "id"),
		Title:         getString(row, "title"),
		FileName:      getString(row, "file_name"),
		FileSize:      getInt64(row, "file_size"),
		FileType:      getString(row, "file_type"),
		DownloadURL:   getString(row, "download_url"),
		StoragePath:   getString(row, "storage_path"),
		UploadedBy:    getString(row, "uploaded_by"),
		UploadedAt:    getTime(row, "uploaded_at"),
		IsPublic:      getBool(row, "is_public"),
		ViewCount:     getInt(row, "view_count"),
		DownloadCount: getInt(row, "download_count"),
		PageCount:     getInt(row, "page_count"),
	}
}
