// internal/assistant/handler.go
package assistant

import (
	"errors"
	"librarydesk/internal/catalog"
	"librarydesk/internal/httpx"
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

func (h *Handler) HandleDescription(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	answer, err := h.service.Describe(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	respond(w, "ai_description", answer, err)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	answer, err := h.service.Summarize(r.Context(), profile.ID, chi.URLParam(r, "bookID"))
	respond(w, "ai_summary", answer, err)
}

func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	answer, err := h.service.Recommend(r.Context(), profile.ID)
	respond(w, "ai_recommendations", answer, err)
}

func respond(w http.ResponseWriter, action string, answer *Answer, err error) {
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, answer)
	case errors.Is(err, ErrRateLimited):
		httpx.Error(w, http.StatusTooManyRequests, action, err.Error())
	case errors.Is(err, ErrUnavailable):
		httpx.Error(w, http.StatusServiceUnavailable, action, err.Error())
	case errors.Is(err, catalog.ErrBookNotFound):
		httpx.Error(w, http.StatusNotFound, action, err.Error())
	default:
		httpx.Error(w, http.StatusBadGateway, action, err.Error())
	}
}
