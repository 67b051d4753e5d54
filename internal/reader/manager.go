package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"ebook-library/internal/domain"
)

// DefaultIdleTimeout closes sessions nobody has touched for this long.
const DefaultIdleTimeout = 30 * time.Minute

// OpenRequest asks the manager to open a book for a user.
type OpenRequest struct {
	UserID string
	Token  string
	BookID string
	Known  *Position
}

// Manager owns the open reader sessions of the process.
type Manager struct {
	books    domain.BookService
	progress domain.ProgressService
	opts     Options
	logger   domain.Logger
	idle     time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(books domain.BookService, progress domain.ProgressService, opts Options, idle time.Duration) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{
		books:    books,
		progress: progress,
		opts:     opts,
		logger:   opts.Logger,
		idle:     idle,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a book. PDF and EPUB books are supported.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	book, err := m.books.GetBook(ctx, req.BookID, req.Token)
	if err != nil {
		return nil, err
	}

	var kind DocumentKind
	switch {
	case book.IsEPUB():
		kind = DocumentEPUB
	case book.IsPDF():
		kind = DocumentPDF
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, book.FileType)
	}

	s := NewSession(Config{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		BookID:    book.ID,
		BookTitle: book.Title,
		Kind:      kind,
		ContentURL: func(ctx context.Context) (string, error) {
			return m.books.ContentURL(ctx, book)
		},
		Store: NewServiceStore(m.progress, req.Token),
		Known: req.Known,
	}, m.opts)

	if err := m.books.RecordView(ctx, book.ID, req.Token); err != nil {
		m.logger.Warn("Failed to record book view", "book_id", book.ID, "error", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	s.Start()
	m.logger.Info("Opened reader session", "session_id", s.ID(), "book_id", book.ID, "user_id", req.UserID, "kind", kind)
	return s, nil
}

// Get returns the session if it exists and belongs to userID.
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.UserID() != userID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close stops the session and removes it.
func (m *Manager) Close(ctx context.Context, id, userID string) error {
	s, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	m.remove(id)
	return s.Close(ctx)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len is the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many were closed.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.idle)

	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.remove(s.ID())
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Failed to flush progress of idle session", "session_id", s.ID(), "error", err)
		}
	}
	if len(stale) > 0 {
		m.logger.Info("Swept idle reader sessions", "closed", len(stale), "open", m.Len())
	}
	return len(stale)
}

// StartSweeper schedules Sweep with a cron spec such as "@every 1m".
func (m *Manager) StartSweeper(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		m.Sweep(ctx, time.Now())
	}); err != nil {
		return fmt.Errorf("schedule session sweeper: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	m.logger.Info("Session sweeper started", "schedule", spec, "idle_timeout", m.idle.String())
	return nil
}

// Shutdown stops the sweeper and closes every session, flushing progress.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Failed to flush progress on shutdown", "session_id", s.ID(), "error", err)
		}
	}
}
