// internal/catalog/handler.go
package catalog

import (
	"context"
	"errors"
	"librarydesk/internal/httpx"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Annotator attaches the caller's lending view to a set of books.
type Annotator interface {
	Views(ctx context.Context, userID string, bookIDs []string) (map[string]lending.View, error)
}

// BookEntry is a book as listed on the books page.
type BookEntry struct {
	*Book
	Lending *lending.View `json:"lending,omitempty"`
}

type Handler struct {
	service   Service
	annotator Annotator
}

func NewHandler(service Service, annotator Annotator) *Handler {
	return &Handler{service: service, annotator: annotator}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Genre: q.Get("genre")}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "list_books", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.annotate(r, books))
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if errors.Is(err, ErrEmptyQuery) {
		httpx.Error(w, http.StatusBadRequest, "search", err.Error())
		return
	}
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "search", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.annotate(r, books))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBook(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeError(w, "get_book", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.annotate(r, []*Book{book})[0])
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "add_book", err.Error())
		return
	}
	book, err := h.service.AddBook(r.Context(), in)
	if err != nil {
		writeError(w, "add_book", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "update_book", err.Error())
		return
	}
	book, err := h.service.UpdateBook(r.Context(), chi.URLParam(r, "bookID"), in)
	if err != nil {
		writeError(w, "update_book", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveBook(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		writeError(w, "remove_book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// annotate attaches lending views when available. Failure to compute them
// leaves the books listed without actions rather than failing the page.
func (h *Handler) annotate(r *http.Request, books []*Book) []BookEntry {
	entries := make([]BookEntry, len(books))
	for i, b := range books {
		entries[i] = BookEntry{Book: b}
	}

	profile, ok := membership.ProfileFrom(r.Context())
	if h.annotator == nil || !ok || len(books) == 0 {
		return entries
	}
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	views, err := h.annotator.Views(r.Context(), profile.ID, ids)
	if err != nil {
		return entries
	}
	for i := range entries {
		if v, ok := views[entries[i].ID]; ok {
			if !profile.Role.Can(membership.CapBorrowBooks) {
				v.Actions = 0
			}
			entries[i].Lending = &v
		}
	}
	return entries
}

func writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, action, err.Error())
	case errors.Is(err, ErrInvalidBook):
		httpx.Error(w, http.StatusBadRequest, action, err.Error())
	default:
		httpx.Error(w, http.StatusBadGateway, action, err.Error())
	}
}
