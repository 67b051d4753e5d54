package reader

import (
	"context"
	"math"
	"sync"
	"time"

	"ebook-library/internal/domain"
)

// DefaultDebounce is the quiet period before a progress write.
const DefaultDebounce = 3 * time.Second

const saveTimeout = 10 * time.Second

// Position is a reading position as persisted: a completion fraction and a
// 1-based page. Page 0 means unknown.
type Position struct {
	Fraction float64 `json:"fraction"`
	Page     int     `json:"page"`
}

// DefaultPosition is the start of a document.
var DefaultPosition = Position{Fraction: 0, Page: 1}

// Index converts the position into a 0-based index for a document of total
// chapters. The page wins over the fraction when both are present.
func (p Position) Index(total int) int {
	if total <= 0 {
		return 0
	}
	if p.Page >= 1 {
		return clampIndex(p.Page-1, total)
	}
	f := domain.ClampFraction(p.Fraction)
	if f == 0 {
		return 0
	}
	return clampIndex(int(math.Ceil(f*float64(total)))-1, total)
}

// Fraction is the completion fraction of showing index out of total.
func Fraction(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	page := index + 1
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	return float64(page) / float64(total)
}

// ResolutionState tracks where the initial position came from.
type ResolutionState int

const (
	Unresolved ResolutionState = iota
	Resolving
	Resolved
)

func (s ResolutionState) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// ProgressStore loads and saves reading progress for a session.
type ProgressStore interface {
	Load(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error)
	Save(ctx context.Context, update domain.ProgressUpdate) error
}

// Timer is the part of *time.Timer the tracker needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	UserID    string
	BookID    string
	Store     ProgressStore
	Logger    domain.Logger
	Debounce  time.Duration
	AfterFunc AfterFunc
}

// Tracker resolves the starting position of a session and writes progress
// back, debounced, as the reader moves.
type Tracker struct {
	mu        sync.Mutex
	userID    string
	bookID    string
	store     ProgressStore
	logger    domain.Logger
	debounce  time.Duration
	afterFunc AfterFunc

	state    ResolutionState
	resolved Position
	current  *Position
	pending  *domain.ProgressUpdate
	timer    Timer
	gen      uint64
	last     float64
}

// NewTracker creates a tracker in the Unresolved state.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	return &Tracker{
		userID:    cfg.UserID,
		bookID:    cfg.BookID,
		store:     cfg.Store,
		logger:    cfg.Logger,
		debounce:  cfg.Debounce,
		afterFunc: cfg.AfterFunc,
	}
}

func (t *Tracker) State() ResolutionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastFraction is the most recently observed completion fraction.
func (t *Tracker) LastFraction() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Resolve determines the starting position. A known position from the
// caller wins; otherwise the store is consulted. A missing record or a store
// failure resolves to DefaultPosition. Once resolved, later calls return the
// last observed position, or the resolved one when nothing was observed.
func (t *Tracker) Resolve(ctx context.Context, known *Position) Position {
	t.mu.Lock()
	if t.state == Resolved {
		pos := t.resolved
		if t.current != nil {
			pos = *t.current
		}
		t.mu.Unlock()
		return pos
	}
	t.state = Resolving
	t.mu.Unlock()

	pos := t.lookup(ctx, known)

	t.mu.Lock()
	t.resolved = pos
	t.last = domain.ClampFraction(pos.Fraction)
	t.state = Resolved
	t.mu.Unlock()
	return pos
}

func (t *Tracker) lookup(ctx context.Context, known *Position) Position {
	if known != nil {
		return *known
	}
	if t.userID == "" || t.store == nil {
		return DefaultPosition
	}
	p, err := t.store.Load(ctx, t.userID, t.bookID)
	if err != nil {
		t.logger.Warn("Failed to load reading progress, starting from the beginning",
			"user_id", t.userID, "book_id", t.bookID, "error", err)
		return DefaultPosition
	}
	if p == nil {
		return DefaultPosition
	}
	return Position{Fraction: p.Progress, Page: p.CurrentPage}
}

// Observe records that index of total is now displayed and schedules a
// write after the debounce period. Without a user nothing is persisted.
func (t *Tracker) Observe(index, total int) {
	if total <= 0 {
		return
	}
	fraction := Fraction(index, total)

	page := clampIndex(index, total) + 1

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = fraction
	t.current = &Position{Fraction: fraction, Page: page}
	if t.userID == "" || t.store == nil {
		return
	}
	t.pending = &domain.ProgressUpdate{
		UserID:      t.userID,
		BookID:      t.bookID,
		Progress:    fraction,
		CurrentPage: page,
		TotalPages:  total,
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.afterFunc(t.debounce, func() { t.fire(gen) })
}

func (t *Tracker) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.pending == nil {
		t.mu.Unlock()
		return
	}
	update := *t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	t.save(ctx, update)
}

// Flush writes any pending update immediately.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	if pending == nil {
		return nil
	}
	return t.save(ctx, *pending)
}

func (t *Tracker) save(ctx context.Context, update domain.ProgressUpdate) error {
	if err := t.store.Save(ctx, update); err != nil {
		t.logger.Warn("Failed to save reading progress",
			"user_id", update.UserID, "book_id", update.BookID, "error", err)
		return err
	}
	t.logger.Debug("Saved reading progress",
		"book_id", update.BookID, "page", update.CurrentPage, "progress", update.Progress)
	return nil
}

// ServiceStore adapts a ProgressService to ProgressStore with the caller's
// access token. The token is refreshed on every authenticated request.
type ServiceStore struct {
	svc   domain.ProgressService
	mu    sync.RWMutex
	token string
}

func NewServiceStore(svc domain.ProgressService, token string) *ServiceStore {
	return &ServiceStore{svc: svc, token: token}
}

func (s *ServiceStore) SetToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *ServiceStore) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *ServiceStore) Load(ctx context.Context, userID, bookID string) (*domain.ReadingProgress, error) {
	return s.svc.GetProgress(ctx, userID, bookID, s.currentToken())
}

func (s *ServiceStore) Save(ctx context.Context, update domain.ProgressUpdate) error {
	_, err := s.svc.SaveProgress(ctx, update, s.currentToken())
	return err
}
