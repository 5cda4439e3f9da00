package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/storage"
	"github.com/username/ledgerly/backend/src/utils"
)

type AlertHandler struct {
	store storage.Store
}

func NewAlertHandler(store storage.Store) *AlertHandler {
	return &AlertHandler{store: store}
}

func (h *AlertHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var alerts []models.Alert
	var err error
	if r.URL.Query().Get("include_resolved") == "true" {
		alerts, err = h.store.AlertsByUser(r.Context(), userID)
	} else {
		alerts, err = h.store.UnresolvedAlertsByUser(r.Context(), userID)
	}
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error listing alerts", "error", err)
		utils.SendJSONError(w, "Error retrieving alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	utils.WriteJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) HandleSnoozeAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid alert id", http.StatusBadRequest)
		return
	}

	snoozed, err := h.store.SnoozeAlert(r.Context(), userID, alertID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error snoozing alert", "alertID", alertID, "error", err)
		utils.SendJSONError(w, "Error snoozing alert", http.StatusInternalServerError)
		return
	}
	if !snoozed {
		utils.SendJSONError(w, "Alert not found or not open", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "snoozed"})
}

func (h *AlertHandler) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	alertID, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid alert id", http.StatusBadRequest)
		return
	}

	// Ownership check before the write; ResolveAlert itself is keyed by id.
	alerts, err := h.store.UnresolvedAlertsByUser(r.Context(), userID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error loading alerts", "error", err)
		utils.SendJSONError(w, "Error resolving alert", http.StatusInternalServerError)
		return
	}
	owned := false
	for _, alert := range alerts {
		if alert.ID == alertID {
			owned = true
			break
		}
	}
	if !owned {
		utils.SendJSONError(w, "Alert not found", http.StatusNotFound)
		return
	}

	resolved, err := h.store.ResolveAlert(r.Context(), alertID, time.Now().UnixMilli())
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error resolving alert", "alertID", alertID, "error", err)
		utils.SendJSONError(w, "Error resolving alert", http.StatusInternalServerError)
		return
	}
	if !resolved {
		utils.SendJSONError(w, "Alert not found", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
