package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ebook-library/internal/domain"
	"ebook-library/internal/reader"
)

// DefaultWaitTimeout bounds how long a command waits for the renderer.
const DefaultWaitTimeout = 10 * time.Second

const eventsHeartbeat = 25 * time.Second

// SessionManager opens and tracks reader sessions.
type SessionManager interface {
	Open(ctx context.Context, req reader.OpenRequest) (*reader.Session, error)
	Get(id, userID string) (*reader.Session, error)
	Close(ctx context.Context, id, userID string) error
}

// SessionHandler drives reader sessions over HTTP.
type SessionHandler struct {
	sessions    SessionManager
	logger      domain.Logger
	waitTimeout time.Duration
}

func NewSessionHandler(sessions SessionManager, logger domain.Logger, waitTimeout time.Duration) *SessionHandler {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &SessionHandler{
		sessions:    sessions,
		logger:      logger,
		waitTimeout: waitTimeout,
	}
}

type openSessionRequest struct {
	BookID   string   `json:"book_id" validate:"required"`
	Progress *float64 `json:"progress" validate:"omitempty,gte=0,lte=1"`
	Page     *int     `json:"page" validate:"omitempty,min=1"`
}

type goToRequest struct {
	Page int `json:"page" validate:"min=1"`
}

// OpenSession starts a session and answers once the first chapter (or the
// PDF resume page) is known, or the wait timeout passes.
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, "Invalid session request", err)
		return
	}

	var known *reader.Position
	if req.Progress != nil || req.Page != nil {
		known = &reader.Position{}
		if req.Progress != nil {
			known.Fraction = *req.Progress
		}
		if req.Page != nil {
			known.Page = *req.Page
		}
	}

	// The session outlives this request.
	s, err := h.sessions.Open(context.WithoutCancel(r.Context()), reader.OpenRequest{
		UserID: user.ID,
		Token:  token,
		BookID: req.BookID,
		Known:  known,
	})
	if err != nil {
		handleError(w, h.logger, "Failed to open session", err)
		return
	}
	h.respond(w, r, s, http.StatusCreated)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("wait") == "true" {
		h.respond(w, r, s, http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// CloseSession flushes pending progress and discards the session.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	user, _, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(r.Context(), mux.Vars(r)["id"], user.ID); err != nil {
		handleError(w, h.logger, "Failed to close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, func(s *reader.Session) (reader.View, error) { return s.Next() })
}

func (h *SessionHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, func(s *reader.Session) (reader.View, error) { return s.Previous() })
}

func (h *SessionHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req goToRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, "Invalid page request", err)
		return
	}
	h.command(w, r, func(s *reader.Session) (reader.View, error) { return s.GoTo(req.Page) })
}

func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, func(s *reader.Session) (reader.View, error) { return s.Retry() })
}

// Bridge accepts one message from the client-side viewer as a JSON envelope.
func (h *SessionHandler) Bridge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	msg, err := reader.DecodeMessage(body)
	if err != nil {
		handleError(w, h.logger, "Rejected viewer message", err)
		return
	}
	if err := s.Deliver(msg); err != nil {
		handleError(w, h.logger, "Failed to deliver viewer message", err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// Events streams view snapshots as server-sent events until the session
// closes or the client goes away.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()

	var sent uint64
	first := true
	for {
		v, changed := s.Changes()
		if first || v.Version != sent {
			if err := writeEvent(w, "view", v); err != nil {
				h.logger.Debug("Event stream ended", "session_id", v.ID, "error", err.Error())
				return
			}
			flusher.Flush()
			sent = v.Version
			first = false
		}
		if v.Status == reader.StatusClosed {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-changed:
		}
	}
}

func writeEvent(w io.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (h *SessionHandler) command(w http.ResponseWriter, r *http.Request, run func(*reader.Session) (reader.View, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := run(s); err != nil {
		handleError(w, h.logger, "Session command failed", err)
		return
	}
	h.respond(w, r, s, http.StatusOK)
}

// respond waits for the session to settle. A view that is still loading
// when the wait times out is returned with 202.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, s *reader.Session, status int) {
	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	v, err := s.Wait(ctx)
	if err != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, v)
}

// session looks up the caller's session and refreshes its access token.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*reader.Session, bool) {
	user, token, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(mux.Vars(r)["id"], user.ID)
	if err != nil {
		handleError(w, h.logger, "Session lookup failed", err)
		return nil, false
	}
	s.Touch(token)
	return s, true
}
