// internal/membership/handler.go
package membership

import (
	"errors"
	"librarydesk/internal/httpx"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		*Profile
		Capabilities []Capability `json:"capabilities"`
	}{profile, profile.Role.Capabilities()})
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "list_users", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profiles)
}

func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := ProfileFrom(r.Context())

	var req struct {
		Role string `json:"role"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "change_role", err.Error())
		return
	}

	profile, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "userID"), Role(req.Role))
	switch {
	case errors.Is(err, ErrInvalidRole):
		httpx.Error(w, http.StatusBadRequest, "change_role", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, "change_role", err.Error())
	case err != nil:
		httpx.Error(w, http.StatusBadGateway, "change_role", err.Error())
	default:
		httpx.WriteJSON(w, http.StatusOK, profile)
	}
}
