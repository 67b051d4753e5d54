package domain

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Accepted upload media types.
const (
	FileTypePDF  = "application/pdf"
	FileTypeEPUB = "application/epub+zip"
)

// Book is one uploaded document in the shared library.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	FileName      string    `json:"file_name"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	DownloadURL   string    `json:"download_url"`
	StoragePath   string    `json:"storage_path"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"`
	IsPublic      bool      `json:"is_public"`
	ViewCount     int       `json:"view_count"`
	DownloadCount int       `json:"download_count"`
	PageCount     int       `json:"page_count,omitempty"`
}

// IsEPUB reports whether the declared media type names an EPUB package.
func (b *Book) IsEPUB() bool {
	return strings.Contains(strings.ToLower(b.FileType), "epub")
}

// IsPDF reports whether the declared media type names a PDF document.
func (b *Book) IsPDF() bool {
	return strings.Contains(strings.ToLower(b.FileType), "pdf")
}

// Validate checks the fields every persisted book must carry.
func (b *Book) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return &ValidationError{Field: "id", Message: "book ID is required"}
	}
	if strings.TrimSpace(b.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(b.UploadedBy) == "" {
		return &ValidationError{Field: "uploaded_by", Message: "uploader is required"}
	}
	if !b.IsEPUB() && !b.IsPDF() {
		return &ValidationError{Field: "file_type", Message: "file type must be pdf or epub"}
	}
	if b.FileSize < 0 {
		return &ValidationError{Field: "file_size", Message: "file size cannot be negative"}
	}
	return nil
}

// DetectFileType resolves the media type of an upload from its declared
// content type, falling back to the file extension.
func DetectFileType(contentType, fileName string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case FileTypePDF, FileTypeEPUB:
		return ct, true
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FileTypePDF, true
	case ".epub":
		return FileTypeEPUB, true
	}
	return "", false
}

// UploadInput carries one file upload from the transport layer.
type UploadInput struct {
	UserID      string
	Token       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult is the outcome of an object-storage upload. Failures are
// reported through Success and Message rather than as errors.
type UploadResult struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	Message     string `json:"message,omitempty"`
}

// LibraryFilter narrows the library listing.
type LibraryFilter string

const (
	FilterAll       LibraryFilter = "all"
	FilterPDF       LibraryFilter = "pdf"
	FilterEPUB      LibraryFilter = "epub"
	FilterRecent    LibraryFilter = "recent"
	FilterUnread    LibraryFilter = "unread"
	FilterReading   LibraryFilter = "reading"
	FilterCompleted LibraryFilter = "completed"
)

// LibrarySort orders the library listing.
type LibrarySort string

const (
	SortRecent   LibrarySort = "recent"
	SortTitle    LibrarySort = "title"
	SortSize     LibrarySort = "size"
	SortProgress LibrarySort = "progress"
)

// LibraryQuery describes one library listing request.
type LibraryQuery struct {
	Filter LibraryFilter
	Sort   LibrarySort
	Search string
}

// LibraryItem is a book merged with the caller's reading progress.
type LibraryItem struct {
	Book     *Book            `json:"book"`
	Progress *ReadingProgress `json:"progress"`
}

// LibraryResponse is the payload returned by the library endpoint.
type LibraryResponse struct {
	Books []*LibraryItem `json:"books"`
	Total int            `json:"total"`
}

// BookRepository defines persistence operations for the shared books collection.
type BookRepository interface {
	Create(ctx context.Context, book *Book, token string) error
	// GetByID returns nil, nil when the book does not exist.
	GetByID(ctx context.Context, id string, token string) (*Book, error)
	List(ctx context.Context, token string) ([]*Book, error)
	Delete(ctx context.Context, id string, token string) error
	UpdateCounters(ctx context.Context, id string, viewCount, downloadCount int, token string) error
}

// BookService defines the use-case operations for books.
type BookService interface {
	Upload(ctx context.Context, in *UploadInput) (*Book, error)
	GetBook(ctx context.Context, id string, token string) (*Book, error)
	ListLibrary(ctx context.Context, userID string, query LibraryQuery, token string) ([]*LibraryItem, error)
	DeleteBook(ctx context.Context, userID, bookID string, token string) error
	RecordView(ctx context.Context, bookID string, token string) error
	DownloadURL(ctx context.Context, bookID string, token string) (string, error)
	ContentURL(ctx context.Context, book *Book) (string, error)
}

// StorageService is the object storage collaborator.
type StorageService interface {
	Upload(ctx context.Context, path string, file io.Reader, size int64, contentType string) *UploadResult
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	URL(ctx context.Context, path string) (string, error)
}

// DocumentInspector validates an uploaded document and reports what it found.
type DocumentInspector interface {
	Inspect(fileType string, data []byte) (*DocumentInfo, error)
}

// DocumentInfo is what inspection learned about an upload.
type DocumentInfo struct {
	Title     string
	PageCount int
}
