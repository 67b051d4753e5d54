package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"ebook-library/internal/domain"
)

type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		messages: []string{},
	}
}

func (m *MockLogger) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, line)
}

func (m *MockLogger) Info(msg string, args ...interface{}) {
	m.record("INFO: " + msg)
}

func (m *MockLogger) Error(msg string, err error, args ...interface{}) {
	if err == nil {
		m.record("ERROR: " + msg)
		return
	}
	m.record("ERROR: " + msg + " - " + err.Error())
}

func (m *MockLogger) Debug(msg string, args ...interface{}) {
	m.record("DEBUG: " + msg)
}

func (m *MockLogger) Warn(msg string, args ...interface{}) {
	m.record("WARN: " + msg)
}

// MockBookRepository keeps books in memory.
type MockBookRepository struct {
	mu        sync.Mutex
	books     map[string]*domain.Book
	createErr error
}

func NewMockBookRepository(books ...*domain.Book) *MockBookRepository {
	m := &MockBookRepository{books: make(map[string]*domain.Book)}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

func (m *MockBookRepository) Create(ctx context.Context, book *domain.Book, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.books[book.ID] = book
	return nil
}

func (m *MockBookRepository) GetByID(ctx context.Context, id string, token string) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[id], nil
}

func (m *MockBookRepository) List(ctx context.Context, token string) ([]*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockBookRepository) Delete(ctx context.Context, id string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	return nil
}

func (m *MockBookRepository) UpdateCounters(ctx context.Context, id string, viewCount, downloadCount int, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return errors.New("book not found")
	}
	b.ViewCount = viewCount
	b.DownloadCount = downloadCount
	return nil
}

// MockProgressRepository keeps progress and history keyed by user/book.
type MockProgressRepository struct {
	mu       sync.Mutex
	progress map[string]*domain.ReadingProgress
	history  map[string]*domain.ReadingHistoryEntry
}

func NewMockProgressRepository() *MockProgressRepository {
	return &MockProgressRepository{
		progress: make(map[string]*domain.ReadingProgress),
		history:  make(map[string]*domain.ReadingHistoryEntry),
	}
}

func key(userID, bookID string) string { return userID + "/" + bookID }

func (m *MockProgressRepository) GetProgress(ctx context.Context, userID, bookID string, token string) (*domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress[key(userID, bookID)], nil
}

func (m *MockProgressRepository) ListProgress(ctx context.Context, userID string, token string) ([]*domain.ReadingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ReadingProgress
	for _, p := range m.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockProgressRepository) SaveProgress(ctx context.Context, p *domain.ReadingProgress, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[key(p.UserID, p.BookID)] = p
	return nil
}

func (m *MockProgressRepository) DeleteProgress(ctx context.Context, userID, bookID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, key(userID, bookID))
	return nil
}

func (m *MockProgressRepository) UpsertHistory(ctx context.Context, e *domain.ReadingHistoryEntry, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[key(e.UserID, e.BookID)] = e
	return nil
}

func (m *MockProgressRepository) ListHistory(ctx context.Context, userID string, limit int, token string) ([]*domain.ReadingHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ReadingHistoryEntry
	for _, e := range m.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastRead.After(out[j].LastRead) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockProgressRepository) DeleteHistory(ctx context.Context, userID, bookID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, key(userID, bookID))
	return nil
}

func (m *MockProgressRepository) ClearHistory(ctx context.Context, userID string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.history {
		if e.UserID == userID {
			delete(m.history, k)
		}
	}
	return nil
}

// MockStorageService records uploads and deletions.
type MockStorageService struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	fail    string
}

func NewMockStorageService() *MockStorageService {
	return &MockStorageService{objects: make(map[string][]byte)}
}

func (m *MockStorageService) Upload(ctx context.Context, path string, file io.Reader, size int64, contentType string) *domain.UploadResult {
	if m.fail != "" {
		return &domain.UploadResult{Success: false, Message: m.fail}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return &domain.UploadResult{Success: false, Message: err.Error()}
	}
	m.mu.Lock()
	m.objects[path] = data
	m.mu.Unlock()
	return &domain.UploadResult{Success: true, StoragePath: path, DownloadURL: "https://storage.test/" + path}
}

func (m *MockStorageService) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *MockStorageService) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *MockStorageService) URL(ctx context.Context, path string) (string, error) {
	return "https://storage.test/signed/" + path, nil
}

// stubInspector accepts every document.
type stubInspector struct {
	info *domain.DocumentInfo
	err  error
}

func (s stubInspector) Inspect(fileType string, data []byte) (*domain.DocumentInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.info != nil {
		return s.info, nil
	}
	return &domain.DocumentInfo{PageCount: 1}, nil
}
