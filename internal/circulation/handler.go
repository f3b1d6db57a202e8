// internal/circulation/handler.go
package circulation

import (
	"context"
	"errors"
	"librarydesk/internal/httpx"
	"librarydesk/internal/lending"
	"librarydesk/internal/membership"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	view, err := h.service.BookView(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.service.Issue)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.service.Return)
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.service.Renew)
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
		WriteActionError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// WriteActionError reports a failed lending action as a notification that
// names the action.
func WriteActionError(w http.ResponseWriter, err error) {
	var ae *ActionError
	if !errors.As(err, &ae) {
		httpx.Error(w, http.StatusServiceUnavailable, "", err.Error())
		return
	}
	status := http.StatusBadGateway
	if errors.Is(err, ErrActionInFlight) || errors.Is(err, ErrActionRejected) {
		status = http.StatusConflict
	}
	httpx.Error(w, status, ae.Action.String(), ae.Message)
}
