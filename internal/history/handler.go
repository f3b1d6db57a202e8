// internal/history/handler.go
package history

import (
	"bytes"
	"librarydesk/internal/httpx"
	"librarydesk/internal/membership"
	"net/http"
	"strconv"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	rows, err := h.service.ForUser(r.Context(), profile.ID)
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "list_transactions", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	profile, ok := membership.ProfileFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
		return
	}
	// Buffer so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), profile.ID, &buf); err != nil {
		httpx.Error(w, http.StatusBadGateway, "export_transactions", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.service.All(r.Context(), limit)
	if err != nil {
		httpx.Error(w, http.StatusBadGateway, "list_all_transactions", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}
