package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"ebook-library/internal/epub"
)

// ErrHostBridge marks a malformed or misdirected cross-boundary message.
var ErrHostBridge = errors.New("host bridge: malformed message")

// ErrBridgeClosed is returned when sending on a closed bridge.
var ErrBridgeClosed = errors.New("host bridge: closed")

// MessageKind names a bridge message variant.
type MessageKind string

const (
	KindLoadRequest    MessageKind = "load-request"
	KindLog            MessageKind = "log"
	KindError          MessageKind = "error"
	KindChapterChanged MessageKind = "chapter-changed"
)

// Message is the tagged union carried by the bridge. The unexported method
// keeps the set of variants closed.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// LoadRequest hands the archive to the rendering loop, once per session attempt.
type LoadRequest struct {
	Archive []byte   `json:"archive"`
	Resume  Position `json:"resume"`
}

// LogMessage carries diagnostic text.
type LogMessage struct {
	Text string `json:"text"`
}

// ErrorMessage reports a terminal failure of the current session attempt.
type ErrorMessage struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChapterChanged reports the chapter now on display. Index is 0-based.
type ChapterChanged struct {
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Title     string `json:"title"`
	BookTitle string `json:"book_title,omitempty"`
	Content   string `json:"content,omitempty"`
}

func (*LoadRequest) Kind() MessageKind    { return KindLoadRequest }
func (*LogMessage) Kind() MessageKind     { return KindLog }
func (*ErrorMessage) Kind() MessageKind   { return KindError }
func (*ChapterChanged) Kind() MessageKind { return KindChapterChanged }

func (*LoadRequest) isMessage()    {}
func (*LogMessage) isMessage()     {}
func (*ErrorMessage) isMessage()   {}
func (*ChapterChanged) isMessage() {}

// ErrorCode classifies an ErrorMessage.
type ErrorCode string

const (
	CodeFetch             ErrorCode = "fetch"
	CodeInvalidArchive    ErrorCode = "invalid-archive"
	CodeNoReadableContent ErrorCode = "no-readable-content"
	CodeChapterNotFound   ErrorCode = "chapter-not-found"
	CodeHostBridge        ErrorCode = "host-bridge"
)

// CodeOf maps an error onto the session error taxonomy.
func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, epub.ErrFetch):
		return CodeFetch
	case errors.Is(err, epub.ErrNoReadableContent):
		return CodeNoReadableContent
	case errors.Is(err, epub.ErrChapterNotFound):
		return CodeChapterNotFound
	case errors.Is(err, ErrHostBridge):
		return CodeHostBridge
	default:
		return CodeInvalidArchive
	}
}

// Err returns the taxonomy sentinel for the message, wrapped with its text.
func (m *ErrorMessage) Err() error {
	var sentinel error
	switch m.Code {
	case CodeFetch:
		sentinel = epub.ErrFetch
	case CodeNoReadableContent:
		sentinel = epub.ErrNoReadableContent
	case CodeChapterNotFound:
		sentinel = epub.ErrChapterNotFound
	case CodeHostBridge:
		sentinel = ErrHostBridge
	default:
		sentinel = epub.ErrInvalidArchive
	}
	return fmt.Errorf("%w: %s", sentinel, m.Message)
}

func knownCode(c ErrorCode) bool {
	switch c {
	case CodeFetch, CodeInvalidArchive, CodeNoReadableContent, CodeChapterNotFound, CodeHostBridge:
		return true
	}
	return false
}

// Validate checks the payload of a message.
func Validate(m Message) error {
	switch v := m.(type) {
	case *LoadRequest:
		if v == nil || len(v.Archive) == 0 {
			return fmt.Errorf("%w: load-request without archive", ErrHostBridge)
		}
	case *LogMessage:
		if v == nil {
			return fmt.Errorf("%w: empty log", ErrHostBridge)
		}
	case *ErrorMessage:
		if v == nil || v.Message == "" {
			return fmt.Errorf("%w: error without message", ErrHostBridge)
		}
		if v.Code != "" && !knownCode(v.Code) {
			return fmt.Errorf("%w: unknown error code %q", ErrHostBridge, v.Code)
		}
	case *ChapterChanged:
		if v == nil || v.Total < 1 || v.Index < 0 || v.Index >= v.Total {
			return fmt.Errorf("%w: chapter-changed outside [0,total)", ErrHostBridge)
		}
	default:
		return fmt.Errorf("%w: unknown message", ErrHostBridge)
	}
	return nil
}

// Envelope is the JSON form of a message.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMessage renders m as a JSON envelope.
func EncodeMessage(m Message) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostBridge, err)
	}
	return json.Marshal(Envelope{Kind: m.Kind(), Payload: payload})
}

// DecodeMessage parses a JSON envelope. Unknown kinds and malformed
// payloads are rejected with ErrHostBridge.
func DecodeMessage(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostBridge, err)
	}

	var m Message
	switch env.Kind {
	case KindLoadRequest:
		m = &LoadRequest{}
	case KindLog:
		m = &LogMessage{}
	case KindError:
		m = &ErrorMessage{}
	case KindChapterChanged:
		m = &ChapterChanged{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrHostBridge, env.Kind)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s without payload", ErrHostBridge, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, m); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrHostBridge, env.Kind, err)
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Bridge connects the controlling loop and the rendering loop of one
// session attempt. Each direction is a FIFO channel. Chapter requests travel
// on a separate coalescing lane where a newer request replaces an older one.
type Bridge struct {
	toRenderer   chan Message
	toController chan Message
	done         chan struct{}
	closeOnce    sync.Once

	reqMu      sync.Mutex
	reqTarget  int
	reqPending bool
	reqSignal  chan struct{}
}

// NewBridge creates a bridge whose message channels hold buffer entries.
func NewBridge(buffer int) *Bridge {
	return &Bridge{
		toRenderer:   make(chan Message, 1),
		toController: make(chan Message, buffer),
		done:         make(chan struct{}),
		reqSignal:    make(chan struct{}, 1),
	}
}

// SendToRenderer delivers a load-request to the rendering loop.
func (b *Bridge) SendToRenderer(m Message) error {
	if _, ok := m.(*LoadRequest); !ok {
		return fmt.Errorf("%w: %s cannot be sent to the renderer", ErrHostBridge, kindOf(m))
	}
	return b.send(b.toRenderer, m)
}

// SendToController delivers a log, error or chapter-changed message.
func (b *Bridge) SendToController(m Message) error {
	if _, ok := m.(*LoadRequest); ok || m == nil {
		return fmt.Errorf("%w: %s cannot be sent to the controller", ErrHostBridge, kindOf(m))
	}
	return b.send(b.toController, m)
}

func (b *Bridge) send(ch chan Message, m Message) error {
	if err := Validate(m); err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	select {
	case ch <- m:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	}
}

// RendererInbox is read by the rendering loop.
func (b *Bridge) RendererInbox() <-chan Message { return b.toRenderer }

// ControllerInbox is read by the controlling loop.
func (b *Bridge) ControllerInbox() <-chan Message { return b.toController }

// RequestChapter asks the renderer to display index, superseding any
// request it has not picked up yet.
func (b *Bridge) RequestChapter(index int) {
	b.reqMu.Lock()
	b.reqTarget = index
	b.reqPending = true
	b.reqMu.Unlock()
	select {
	case b.reqSignal <- struct{}{}:
	default:
	}
}

// ChapterRequests signals that a chapter request may be waiting.
func (b *Bridge) ChapterRequests() <-chan struct{} { return b.reqSignal }

// TakeChapterRequest returns and clears the latest chapter request.
func (b *Bridge) TakeChapterRequest() (int, bool) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	if !b.reqPending {
		return 0, false
	}
	b.reqPending = false
	return b.reqTarget, true
}

// Superseded reports whether a newer chapter request is waiting.
func (b *Bridge) Superseded() bool {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	return b.reqPending
}

// Close shuts the bridge down; later sends fail with ErrBridgeClosed.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Done is closed when the bridge is closed.
func (b *Bridge) Done() <-chan struct{} { return b.done }

func kindOf(m Message) MessageKind {
	if m == nil {
		return "nil"
	}
	return m.Kind()
}
