package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/schedule"
	"github.com/username/ledgerly/backend/src/storage"
	"github.com/username/ledgerly/backend/src/utils"
)

type CycleHandler struct {
	store           storage.Store
	clock           *schedule.Clock
	defaultTimezone string
}

func NewCycleHandler(store storage.Store, clock *schedule.Clock, defaultTimezone string) *CycleHandler {
	return &CycleHandler{store: store, clock: clock, defaultTimezone: defaultTimezone}
}

// HandleCompleteCycle marks the current monthly cycle as run for the calling
// user and resolves the matching cycle alert if one is open.
func (h *CycleHandler) HandleCompleteCycle(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	prefs, err := h.store.UserPreferences(r.Context(), userID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error loading preferences", "error", err)
		utils.SendJSONError(w, "Error completing cycle", http.StatusInternalServerError)
		return
	}
	dash, err := h.store.DashboardPreferences(r.Context(), userID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error loading dashboard preferences", "error", err)
		utils.SendJSONError(w, "Error completing cycle", http.StatusInternalServerError)
		return
	}
	tz := models.EffectiveTimezone("", prefs, dash, h.defaultTimezone)

	nowMs := time.Now().UnixMilli()
	cycleKey := h.clock.CycleKey(nowMs, tz)
	if err := h.store.MarkCycleRun(r.Context(), userID, cycleKey, nowMs); err != nil {
		logger.ErrorFromContext(r.Context(), "Error marking cycle run", "cycleKey", cycleKey, "error", err)
		utils.SendJSONError(w, "Error completing cycle", http.StatusInternalServerError)
		return
	}

	// Resolve the reminder right away instead of waiting for the next
	// monthly sweep.
	alerts, err := h.store.UnresolvedAlertsByUser(r.Context(), userID)
	if err == nil {
		fingerprint := fmt.Sprintf("cycle-run:%s", cycleKey)
		for _, alert := range alerts {
			if alert.Fingerprint == fingerprint {
				if _, err := h.store.ResolveAlert(r.Context(), alert.ID, nowMs); err != nil {
					logger.WarnFromContext(r.Context(), "Failed to resolve cycle alert", "alertID", alert.ID, "error", err)
				}
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"cycle_key": cycleKey, "status": "completed"})
}
