package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ebook-library/internal/domain"
	"ebook-library/internal/epub"
)

var (
	ErrSessionClosed = errors.New("reader: session closed")
	ErrNotReady      = errors.New("reader: session not ready")
	ErrSessionFailed = errors.New("reader: session failed")
)

const defaultBridgeBuffer = 16

// DocumentKind selects how a session displays its book.
type DocumentKind string

const (
	DocumentEPUB DocumentKind = "epub"
	DocumentPDF  DocumentKind = "pdf"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
	StatusClosed  Status = "closed"
)

// Options is the configuration shared by every session of a process.
type Options struct {
	Fetcher      epub.Fetcher
	Logger       domain.Logger
	Debounce     time.Duration
	FetchTimeout time.Duration
	BridgeBuffer int
	AfterFunc    AfterFunc
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = epub.DefaultFetchTimeout
	}
	if o.Fetcher == nil {
		o.Fetcher = epub.NewHTTPFetcher(o.FetchTimeout)
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.BridgeBuffer <= 0 {
		o.BridgeBuffer = defaultBridgeBuffer
	}
	return o
}

// Config describes one session.
type Config struct {
	ID        string
	UserID    string
	BookID    string
	BookTitle string
	Kind      DocumentKind
	// ContentURL is called once per attempt so signed URLs are always fresh.
	ContentURL func(ctx context.Context) (string, error)
	Store      ProgressStore
	// Known overrides the stored position when the caller already has one.
	Known *Position
}

// View is a snapshot of a session as exposed to clients.
type View struct {
	ID           string        `json:"id"`
	BookID       string        `json:"book_id"`
	BookTitle    string        `json:"book_title"`
	Kind         DocumentKind  `json:"kind"`
	Status       Status        `json:"status"`
	Resolution   string        `json:"resolution"`
	Page         int           `json:"page"`
	TargetPage   int           `json:"target_page"`
	Total        int           `json:"total"`
	Indicator    string        `json:"indicator"`
	HasNext      bool          `json:"has_next"`
	HasPrevious  bool          `json:"has_previous"`
	ChapterTitle string        `json:"chapter_title,omitempty"`
	Content      string        `json:"content,omitempty"`
	Progress     float64       `json:"progress"`
	Error        *ErrorMessage `json:"error,omitempty"`
	Attempt      int           `json:"attempt"`
	Version      uint64        `json:"version"`
}

// Settled reports whether the view is not waiting on the renderer.
func (v View) Settled() bool {
	switch v.Status {
	case StatusLoading:
		return false
	case StatusReady:
		return v.Page == v.TargetPage
	default:
		return true
	}
}

// Session is one open book. EPUB sessions run a rendering loop and a
// controlling loop joined by a Bridge; PDF sessions are driven by page
// events from the client-side viewer.
type Session struct {
	cfg     Config
	opts    Options
	logger  domain.Logger
	tracker *Tracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	status        Status
	attempt       int
	attemptCancel context.CancelFunc
	bridge        *Bridge
	nav           *Navigator
	chapter       *ChapterChanged
	resume        Position
	err           *ErrorMessage
	version       uint64
	changed       chan struct{}
	lastActive    time.Time
}

// NewSession creates a session. Call Start to begin loading.
func NewSession(cfg Config, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger,
		tracker: NewTracker(TrackerConfig{
			UserID:    cfg.UserID,
			BookID:    cfg.BookID,
			Store:     cfg.Store,
			Logger:    opts.Logger,
			Debounce:  opts.Debounce,
			AfterFunc: opts.AfterFunc,
		}),
		ctx:        ctx,
		cancel:     cancel,
		status:     StatusLoading,
		changed:    make(chan struct{}),
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string     { return s.cfg.ID }
func (s *Session) UserID() string { return s.cfg.UserID }

// Start runs the first attempt.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return
	}
	s.startAttemptLocked()
}

func (s *Session) startAttemptLocked() {
	s.attempt++
	s.status = StatusLoading
	s.err = nil
	s.nav = nil
	s.chapter = nil

	actx, cancel := context.WithCancel(s.ctx)
	s.attemptCancel = cancel
	attempt := s.attempt

	s.logger.Info("Starting reader session attempt",
		"session_id", s.cfg.ID, "book_id", s.cfg.BookID, "kind", s.cfg.Kind, "attempt", attempt)

	if s.cfg.Kind == DocumentPDF {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.preparePDF(actx, attempt)
		}()
		s.notifyLocked()
		return
	}

	b := NewBridge(s.opts.BridgeBuffer)
	s.bridge = b
	r := &renderer{bridge: b, logger: s.logger, openTimeout: s.opts.FetchTimeout}

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		r.run(actx)
	}()
	go func() {
		defer s.wg.Done()
		s.pump(actx, b)
	}()
	go func() {
		defer s.wg.Done()
		s.load(actx, b, attempt)
	}()
	s.notifyLocked()
}

func (s *Session) stopAttemptLocked() {
	if s.attemptCancel != nil {
		s.attemptCancel()
		s.attemptCancel = nil
	}
	if s.bridge != nil {
		s.bridge.Close()
		s.bridge = nil
	}
}

// load fetches the archive while the starting position is resolved. The
// load request is sent only once both are done, so the first render is
// already at the resumed chapter.
func (s *Session) load(ctx context.Context, b *Bridge, attempt int) {
	var (
		pos  Position
		data []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pos = s.tracker.Resolve(ctx, s.cfg.Known)
		return nil
	})
	g.Go(func() error {
		var err error
		data, err = s.fetch(gctx, attempt)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.failAttempt(b, &ErrorMessage{Code: CodeOf(err), Message: err.Error()})
		return
	}

	s.mu.Lock()
	current := b == s.bridge
	if current {
		s.notifyLocked()
	}
	s.mu.Unlock()
	if !current {
		return
	}

	if err := b.SendToRenderer(&LoadRequest{Archive: data, Resume: pos}); err != nil && !errors.Is(err, ErrBridgeClosed) {
		s.failAttempt(b, &ErrorMessage{Code: CodeOf(err), Message: err.Error()})
	}
}

func (s *Session) fetch(ctx context.Context, attempt int) ([]byte, error) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	url, err := s.cfg.ContentURL(fctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve content url: %v", epub.ErrFetch, err)
	}
	data, err := s.opts.Fetcher.Fetch(fctx, epub.CacheBustURL(url, attempt-1))
	if err != nil {
		if errors.Is(err, epub.ErrFetch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", epub.ErrFetch, err)
	}
	return data, nil
}

func (s *Session) pump(ctx context.Context, b *Bridge) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Done():
			return
		case m := <-b.ControllerInbox():
			s.handle(b, m)
		}
	}
}

func (s *Session) handle(b *Bridge, m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b != s.bridge || s.status == StatusClosed {
		return
	}
	switch msg := m.(type) {
	case *LogMessage:
		s.logger.Debug("Renderer log", "session_id", s.cfg.ID, "text", msg.Text)
	case *ErrorMessage:
		s.failLocked(msg)
	case *ChapterChanged:
		s.applyChapterLocked(msg)
	}
}

func (s *Session) applyChapterLocked(msg *ChapterChanged) {
	switch s.status {
	case StatusLoading:
		s.nav = NewNavigator(msg.Total, msg.Index)
		s.status = StatusReady
	case StatusReady:
		if msg.Index != s.nav.Current() || msg.Total != s.nav.Total() {
			s.logger.Debug("Discarding stale chapter",
				"session_id", s.cfg.ID, "index", msg.Index, "current", s.nav.Current())
			return
		}
		s.tracker.Observe(msg.Index, msg.Total)
	default:
		return
	}
	s.chapter = msg
	s.notifyLocked()
}

func (s *Session) preparePDF(ctx context.Context, attempt int) {
	pos := s.tracker.Resolve(ctx, s.cfg.Known)

	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt != s.attempt || s.status != StatusLoading {
		return
	}
	s.resume = pos
	s.status = StatusReady
	s.notifyLocked()
}

func (s *Session) failAttempt(b *Bridge, em *ErrorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b != s.bridge {
		return
	}
	s.failLocked(em)
}

func (s *Session) failLocked(em *ErrorMessage) {
	if s.status == StatusClosed || s.status == StatusError {
		return
	}
	if em.Code == "" {
		em.Code = CodeInvalidArchive
	}
	s.status = StatusError
	s.err = em
	s.logger.Error("Reader session failed", em.Err(),
		"session_id", s.cfg.ID, "book_id", s.cfg.BookID, "code", em.Code)
	s.notifyLocked()
}

func (s *Session) Next() (View, error) {
	return s.navigate(func(n *Navigator) bool { return n.Next() })
}

func (s *Session) Previous() (View, error) {
	return s.navigate(func(n *Navigator) bool { return n.Previous() })
}

// GoTo jumps to a 1-based page.
func (s *Session) GoTo(page int) (View, error) {
	return s.navigate(func(n *Navigator) bool { return n.GoTo(page - 1) })
}

func (s *Session) navigate(step func(*Navigator) bool) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	if err := s.readyLocked(); err != nil {
		return s.viewLocked(), err
	}
	if !step(s.nav) {
		return s.viewLocked(), nil
	}
	if s.cfg.Kind == DocumentPDF {
		s.tracker.Observe(s.nav.Current(), s.nav.Total())
	} else {
		s.bridge.RequestChapter(s.nav.Current())
	}
	s.notifyLocked()
	return s.viewLocked(), nil
}

func (s *Session) readyLocked() error {
	switch s.status {
	case StatusClosed:
		return ErrSessionClosed
	case StatusError:
		return fmt.Errorf("%w: %s", ErrSessionFailed, s.err.Message)
	case StatusLoading:
		return ErrNotReady
	}
	if s.nav == nil {
		return ErrNotReady
	}
	return nil
}

// Deliver accepts a message posted by the client-side viewer. PDF viewers
// report pages as chapter-changed; any viewer may report log or error.
func (s *Session) Deliver(m Message) error {
	if err := Validate(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	if s.status == StatusClosed {
		return ErrSessionClosed
	}

	switch msg := m.(type) {
	case *LogMessage:
		s.logger.Debug("Viewer log", "session_id", s.cfg.ID, "text", msg.Text)
		return nil
	case *ErrorMessage:
		em := *msg
		if em.Code == "" {
			em.Code = classifyViewerError(em.Message)
		}
		s.failLocked(&em)
		return nil
	case *ChapterChanged:
		if s.cfg.Kind != DocumentPDF {
			return fmt.Errorf("%w: chapter-changed is not accepted for %s sessions", ErrHostBridge, s.cfg.Kind)
		}
		return s.pageEventLocked(msg.Index, msg.Total)
	default:
		return fmt.Errorf("%w: %s is not accepted from the viewer", ErrHostBridge, m.Kind())
	}
}

func (s *Session) pageEventLocked(index, total int) error {
	switch s.status {
	case StatusLoading:
		return ErrNotReady
	case StatusError:
		return fmt.Errorf("%w: %s", ErrSessionFailed, s.err.Message)
	}
	if s.nav == nil || s.nav.Total() != total {
		first := s.nav == nil
		s.nav = NewNavigator(total, index)
		s.nav.Unit = "Page"
		if !first {
			s.tracker.Observe(s.nav.Current(), total)
		}
		s.notifyLocked()
		return nil
	}
	if s.nav.GoTo(index) {
		s.tracker.Observe(s.nav.Current(), total)
		s.notifyLocked()
	}
	return nil
}

var networkErrorHints = []string{"network", "fetch", "timeout", "timed out", "connection", "unexpected server response"}

// classifyViewerError maps a viewer error text onto the error taxonomy.
func classifyViewerError(message string) ErrorCode {
	lower := strings.ToLower(message)
	for _, hint := range networkErrorHints {
		if strings.Contains(lower, hint) {
			return CodeFetch
		}
	}
	return CodeInvalidArchive
}

// Retry re-runs initialization of a failed session from the fetch step.
// It is a no-op for sessions that have not failed.
func (s *Session) Retry() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	switch s.status {
	case StatusClosed:
		return s.viewLocked(), ErrSessionClosed
	case StatusError:
		s.stopAttemptLocked()
		s.startAttemptLocked()
	}
	return s.viewLocked(), nil
}

// Touch marks the session active and refreshes the access token used for
// progress writes.
func (s *Session) Touch(token string) {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	if ts, ok := s.cfg.Store.(interface{ SetToken(string) }); ok {
		ts.SetToken(token)
	}
}

// IdleSince is the time of the last client interaction.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Changes returns the current view and a channel closed on the next change.
func (s *Session) Changes() (View, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(), s.changed
}

// Wait blocks until the view is settled or ctx is done.
func (s *Session) Wait(ctx context.Context) (View, error) {
	for {
		v, ch := s.Changes()
		if v.Settled() {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ch:
		}
	}
}

// Close stops the session and flushes pending progress.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusClosed
	s.stopAttemptLocked()
	s.notifyLocked()
	s.mu.Unlock()

	s.cancel()
	err := s.tracker.Flush(ctx)
	s.wg.Wait()
	s.logger.Info("Closed reader session", "session_id", s.cfg.ID, "book_id", s.cfg.BookID)
	return err
}

func (s *Session) notifyLocked() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) viewLocked() View {
	v := View{
		ID:         s.cfg.ID,
		BookID:     s.cfg.BookID,
		BookTitle:  s.cfg.BookTitle,
		Kind:       s.cfg.Kind,
		Status:     s.status,
		Resolution: s.tracker.State().String(),
		Progress:   s.tracker.LastFraction(),
		Error:      s.err,
		Attempt:    s.attempt,
		Version:    s.version,
	}
	if s.nav != nil {
		v.Total = s.nav.Total()
		v.TargetPage = s.nav.Page()
		v.Page = v.TargetPage
		v.Indicator = s.nav.Indicator()
		v.HasNext = s.nav.HasNext()
		v.HasPrevious = s.nav.HasPrevious()
	} else if s.cfg.Kind == DocumentPDF && s.status == StatusReady {
		v.Page = s.resume.Page
		if v.Page < 1 {
			v.Page = 1
		}
		v.TargetPage = v.Page
	}
	if s.chapter != nil {
		v.Page = s.chapter.Index + 1
		v.ChapterTitle = s.chapter.Title
		v.Content = s.chapter.Content
		if v.BookTitle == "" {
			v.BookTitle = s.chapter.BookTitle
		}
	}
	return v
}
