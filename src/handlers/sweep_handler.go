package handlers

import (
	"net/http"

	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/services"
	"github.com/username/ledgerly/backend/src/utils"
)

type SweepHandler struct {
	sweepService services.SweepService
}

func NewSweepHandler(sweepService services.SweepService) *SweepHandler {
	return &SweepHandler{sweepService: sweepService}
}

// HandleRunSweep triggers an on-demand sweep for the calling user.
func (h *SweepHandler) HandleRunSweep(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	mode := models.NormalizeSweepMode(r.URL.Query().Get("mode"))
	if mode == models.SweepHourly && r.URL.Query().Get("mode") == "" {
		mode = models.SweepManual
	}

	result, err := h.sweepService.RunSweep(r.Context(), userID, mode)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Manual sweep failed", "error", err)
		utils.SendJSONError(w, "Error running sweep", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}
