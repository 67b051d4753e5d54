package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
	"ebook-library/internal/reader"
)

// MockBookService serves a fixed set of books.
type MockBookService struct {
	mu        sync.Mutex
	books     map[string]*domain.Book
	lastQuery domain.LibraryQuery
	uploaded  *domain.UploadInput
	uploadErr error
	deleteErr error
	views     int
}

func NewMockBookService(books ...*domain.Book) *MockBookService {
	m := &MockBookService{books: make(map[string]*domain.Book)}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

func (m *MockBookService) Upload(ctx context.Context, in *domain.UploadInput) (*domain.Book, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, _ := io.ReadAll(in.Body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = in
	return &domain.Book{ID: "new-book", Title: in.FileName, FileName: in.FileName, FileSize: int64(len(data)), UploadedBy: in.UserID}, nil
}

func (m *MockBookService) GetBook(ctx context.Context, id string, token string) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[id]; ok {
		return b, nil
	}
	return nil, domain.ErrBookNotFound
}

func (m *MockBookService) ListLibrary(ctx context.Context, userID string, q domain.LibraryQuery, token string) ([]*domain.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var items []*domain.LibraryItem
	for _, b := range m.books {
		items = append(items, &domain.LibraryItem{Book: b, Progress: domain.DefaultProgress(userID, b.ID)})
	}
	return items, nil
}

func (m *MockBookService) DeleteBook(ctx context.Context, userID, bookID string, token string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	b, err := m.GetBook(ctx, bookID, token)
	if err != nil {
		return err
	}
	if b.UploadedBy != userID {
		return domain.ErrNotBookOwner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, bookID)
	return nil
}

func (m *MockBookService) RecordView(ctx context.Context, bookID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views++
	return nil
}

func (m *MockBookService) DownloadURL(ctx context.Context, bookID string, token string) (string, error) {
	b, err := m.GetBook(ctx, bookID, token)
	if err != nil {
		return "", err
	}
	return "https://storage.test/" + b.StoragePath, nil
}

func (m *MockBookService) ContentURL(ctx context.Context, book *domain.Book) (string, error) {
	return "https://storage.test/" + book.StoragePath, nil
}

// MockProgressService records saves and returns canned reads.
type MockProgressService struct {
	mu       sync.Mutex
	progress *domain.ReadingProgress
	saved    []domain.ProgressUpdate
	history  []*domain.HistoryItem
	limit    int
	cleared  bool
	removed  string
}

func (m *MockProgressService) GetProgress(ctx context.Context, userID, bookID string, token string) (*domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress, nil
}

func (m *MockProgressService) SaveProgress(ctx context.Context, u domain.ProgressUpdate, token string) (*domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, u)
	return &domain.ReadingProgress{UserID: u.UserID, BookID: u.BookID, Progress: u.Progress, CurrentPage: u.CurrentPage, TotalPages: u.TotalPages}, nil
}

func (m *MockProgressService) ListHistory(ctx context.Context, userID string, limit int, token string) ([]*domain.HistoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	return m.history, nil
}

func (m *MockProgressService) RemoveFromHistory(ctx context.Context, userID, bookID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = bookID
	return nil
}

func (m *MockProgressService) ClearHistory(ctx context.Context, userID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
	return nil
}

func (m *MockProgressService) GetUserStats(ctx context.Context, userID string, token string) (*domain.UserStats, error) {
	return &domain.UserStats{TotalBooks: 3, BooksInteracted: 1}, nil
}

// testAuth authenticates requests carrying an X-Test-User header.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, &domain.SupabaseUser{ID: id})
		ctx = context.WithValue(ctx, tokenContextKey, "token-"+id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type testServer struct {
	router   http.Handler
	books    *MockBookService
	progress *MockProgressService
	manager  *reader.Manager
}

func newTestServer(t *testing.T, books *MockBookService, archive []byte) *testServer {
	t.Helper()
	progress := &MockProgressService{}
	logger := NewMockHandlerLogger()
	manager := reader.NewManager(books, progress, reader.Options{
		Logger:   logger,
		Debounce: time.Hour,
		Fetcher: epub.FetchFunc(func(ctx context.Context, url string) ([]byte, error) {
			return archive, nil
		}),
	}, time.Hour)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	router := NewRouter(Handlers{
		Auth:     NewAuthHandler(),
		Books:    NewBookHandler(books, logger, 1<<20),
		Progress: NewProgressHandler(progress, logger),
		Sessions: NewSessionHandler(manager, logger, 5*time.Second),
	}, testAuth, nil)

	return &testServer{router: router, books: books, progress: progress, manager: manager}
}

func buildTestEPUB(t *testing.T) []byte {
	t.Helper()
	files := [][2]string{
		{"META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OPS/book.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`},
		{"OPS/book.opf", `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Handler Book</dc:title></metadata>
  <manifest>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
    <item id="c" href="c.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="a"/><itemref idref="b"/><itemref idref="c"/></spine>
</package>`},
		{"OPS/a.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>First</h1><p>One.</p></body></html>`},
		{"OPS/b.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>Second</h1><p>Two.</p></body></html>`},
		{"OPS/c.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><body><h1>Third</h1><p>Three.</p></body></html>`},
	}
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatalf("create %s: %v", f[0], err)
		}
		if _, err := io.WriteString(w, f[1]); err != nil {
			t.Fatalf("write %s: %v", f[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
