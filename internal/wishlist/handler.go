// internal/wishlist/handler.go
package wishlist

import (
	"context"
	"errors"
	"librarydesk/internal/catalog"
	"librarydesk/internal/httpx"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service     Service
	actionError func(http.ResponseWriter, error)
}

// NewHandler creates a wishlist handler. actionError reports failed
// issue and return calls the same way the books page does.
func NewHandler(service Service, actionError func(http.ResponseWriter, error)) *Handler {
	return &Handler{service: service, actionError: actionError}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	items, err := h.service.List(r.Context(), profile.ID)
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	entry, err := h.service.Add(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusCreated, entry)
	case errors.Is(err, ErrAlreadyWishlisted):
		httpx.Error(w, http.StatusConflict, "wishlist_add", err.Error())
	case errors.Is(err, catalog.ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, "wishlist_add", err.Error())
	default:
		httpx.Error(w, http.StatusBadGateway, "wishlist_add", err.Error())
	}
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	err := h.service.Remove(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotWishlisted):
		httpx.Error(w, http.StatusNotFound, "wishlist_remove", err.Error())
	default:
		httpx.Error(w, http.StatusBadGateway, "wishlist_remove", err.Error())
	}
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.service.Issue)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.service.Return)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request,
	do func(ctx context.Context, userID, bookID string) (lending.View, error)) {

	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	view, err := do(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	if err != nil {
		h.actionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}
