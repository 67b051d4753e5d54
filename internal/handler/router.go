package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Books    *BookHandler
	Progress *ProgressHandler
	Sessions *SessionHandler
}

// DefaultAllowedOrigins are the local client dev servers.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:4173",
	"http://localhost:3000",
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, authMiddleware func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "ebook-library"})
	}).Methods(http.MethodGet)

	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/auth/profile", h.Auth.GetProfile).Methods(http.MethodGet)

	protected.HandleFunc("/books", h.Books.ListBooks).Methods(http.MethodGet)
	protected.HandleFunc("/books", h.Books.UploadBook).Methods(http.MethodPost)
	protected.HandleFunc("/books/{id}", h.Books.GetBook).Methods(http.MethodGet)
	protected.HandleFunc("/books/{id}", h.Books.DeleteBook).Methods(http.MethodDelete)
	protected.HandleFunc("/books/{id}/download", h.Books.DownloadBook).Methods(http.MethodPost)

	protected.HandleFunc("/progress/{bookId}", h.Progress.GetProgress).Methods(http.MethodGet)
	protected.HandleFunc("/progress/{bookId}", h.Progress.SaveProgress).Methods(http.MethodPut)
	protected.HandleFunc("/history", h.Progress.ListHistory).Methods(http.MethodGet)
	protected.HandleFunc("/history", h.Progress.ClearHistory).Methods(http.MethodDelete)
	protected.HandleFunc("/history/{bookId}", h.Progress.RemoveFromHistory).Methods(http.MethodDelete)
	protected.HandleFunc("/stats", h.Progress.GetStats).Methods(http.MethodGet)

	protected.HandleFunc("/sessions", h.Sessions.OpenSession).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}", h.Sessions.GetSession).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{id}", h.Sessions.CloseSession).Methods(http.MethodDelete)
	protected.HandleFunc("/sessions/{id}/next", h.Sessions.Next).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/previous", h.Sessions.Previous).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/goto", h.Sessions.GoTo).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/retry", h.Sessions.Retry).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/bridge", h.Sessions.Bridge).Methods(http.MethodPost)
	protected.HandleFunc("/sessions/{id}/events", h.Sessions.Events).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
