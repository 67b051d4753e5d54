package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ebook-library/internal/domain"
)

// multipartOverhead is allowed on top of the file size limit for form framing.
const multipartOverhead = 1 << 20

// BookHandler serves the shared library.
type BookHandler struct {
	books       domain.BookService
	logger      domain.Logger
	maxFileSize int64
}

func NewBookHandler(books domain.BookService, logger domain.Logger, maxFileSize int64) *BookHandler {
	return &BookHandler{
		books:       books,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

type libraryQuery struct {
	Filter string `validate:"omitempty,oneof=all pdf epub recent unread reading completed"`
	Sort   string `validate:"omitempty,oneof=recent title size progress"`
	Search string `validate:"max=200"`
}

// ListBooks returns every book merged with the caller's progress.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}

	q := libraryQuery{
		Filter: strings.ToLower(r.URL.Query().Get("filter")),
		Sort:   strings.ToLower(r.URL.Query().Get("sort")),
		Search: r.URL.Query().Get("q"),
	}
	if err := validateStruct(&q); err != nil {
		handleError(w, h.logger, "Invalid library query", err)
		return
	}

	items, err := h.books.ListLibrary(r.Context(), user.ID, domain.LibraryQuery{
		Filter: domain.LibraryFilter(q.Filter),
		Sort:   domain.LibrarySort(q.Sort),
		Search: q.Search,
	}, token)
	if err != nil {
		handleError(w, h.logger, "Failed to load library", err)
		return
	}
	if items == nil {
		items = []*domain.LibraryItem{}
	}
	writeJSON(w, http.StatusOK, domain.LibraryResponse{Books: items, Total: len(items)})
}

// UploadBook accepts a multipart form with a "file" part.
func (h *BookHandler) UploadBook(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			handleError(w, h.logger, "Upload too large", domain.ErrFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	book, err := h.books.Upload(r.Context(), &domain.UploadInput{
		UserID:      user.ID,
		Token:       token,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		handleError(w, h.logger, "Failed to upload book", err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	_, token, ok := caller(w, r)
	if !ok {
		return
	}
	book, err := h.books.GetBook(r.Context(), mux.Vars(r)["id"], token)
	if err != nil {
		handleError(w, h.logger, "Failed to get book", err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// DeleteBook removes a book. Only its uploader may do so.
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.books.DeleteBook(r.Context(), user.ID, mux.Vars(r)["id"], token); err != nil {
		handleError(w, h.logger, "Failed to delete book", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Book deleted"})
}

// DownloadBook counts a download and returns a link to the file.
func (h *BookHandler) DownloadBook(w http.ResponseWriter, r *http.Request) {
	_, token, ok := caller(w, r)
	if !ok {
		return
	}
	link, err := h.books.DownloadURL(r.Context(), mux.Vars(r)["id"], token)
	if err != nil {
		handleError(w, h.logger, "Failed to create download link", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}
