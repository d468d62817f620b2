package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/navicare/facility-sync/internal/delivery/http/response"
	"github.com/navicare/facility-sync/internal/usecase"
)

type Handler struct {
	status usecase.StatusProvider
}

func NewHandler(status usecase.StatusProvider) *Handler {
	return &Handler{
		status: status,
	}
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.status.Status(r.Context())
	if err != nil {
		slog.Error("Failed to build status report", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.StatusResponse{
		CrawlStates:         make([]response.CrawlStateResponse, 0, len(report.CrawlStates)),
		FacilitiesByType:    make(map[string]int64, len(report.FacilitiesByType)),
		ObservationsLast24h: report.ObservationsLast24h,
		GeneratedAt:         report.GeneratedAt,
	}
	for _, state := range report.CrawlStates {
		resp.CrawlStates = append(resp.CrawlStates, response.CrawlStateResponse{
			Mode:              string(state.Mode),
			Segment:           state.Segment,
			RunID:             state.RunID.String(),
			TotalPages:        state.TotalPages,
			LastCompletedPage: state.LastCompletedPage,
			Status:            state.Status,
			StartedAt:         state.StartedAt,
			CompletedAt:       state.CompletedAt,
			UpdatedAt:         state.UpdatedAt,
		})
	}
	for facilityType, count := range report.FacilitiesByType {
		resp.FacilitiesByType[string(facilityType)] = count
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
