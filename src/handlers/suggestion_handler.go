package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/storage"
	"github.com/username/ledgerly/backend/src/utils"
)

type SuggestionHandler struct {
	store storage.Store
}

func NewSuggestionHandler(store storage.Store) *SuggestionHandler {
	return &SuggestionHandler{store: store}
}

func (h *SuggestionHandler) HandleListSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	suggestions, err := h.store.SuggestionsByUser(r.Context(), userID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error listing suggestions", "error", err)
		utils.SendJSONError(w, "Error retrieving suggestions", http.StatusInternalServerError)
		return
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	utils.WriteJSON(w, http.StatusOK, suggestions)
}

type reviewSuggestionRequest struct {
	Status string `json:"status"`
}

func (h *SuggestionHandler) HandleReviewSuggestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	suggestionID, err := strconv.ParseInt(chi.URLParam(r, "suggestionID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid suggestion id", http.StatusBadRequest)
		return
	}

	var req reviewSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status := models.NormalizeSuggestionStatus(req.Status)
	if status == models.SuggestionOpen {
		utils.SendJSONError(w, "status must be accepted, dismissed or snoozed", http.StatusBadRequest)
		return
	}

	reviewed, err := h.store.ReviewSuggestion(r.Context(), userID, suggestionID, status, time.Now().UnixMilli())
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error reviewing suggestion", "suggestionID", suggestionID, "error", err)
		utils.SendJSONError(w, "Error reviewing suggestion", http.StatusInternalServerError)
		return
	}
	if !reviewed {
		utils.SendJSONError(w, "Suggestion not found or already reviewed", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}
