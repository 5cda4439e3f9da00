package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/services"
	"github.com/username/ledgerly/backend/src/storage"
	"github.com/username/ledgerly/backend/src/utils"
)

type PurchaseHandler struct {
	ledgerService services.LedgerService
	store         storage.Store
}

func NewPurchaseHandler(ledgerService services.LedgerService, store storage.Store) *PurchaseHandler {
	return &PurchaseHandler{ledgerService: ledgerService, store: store}
}

func (h *PurchaseHandler) HandlePostPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var input services.PurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	posting, err := h.ledgerService.PostPurchase(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrMissingMerchant):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrUnknownAccount):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.ErrorFromContext(r.Context(), "Error posting purchase", "error", err)
			utils.SendJSONError(w, "Error posting purchase", http.StatusInternalServerError)
		}
		return
	}
	utils.WriteJSON(w, http.StatusCreated, posting)
}

func (h *PurchaseHandler) HandleGetPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "purchaseID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid purchase id", http.StatusBadRequest)
		return
	}

	posting, err := h.store.PurchaseByID(r.Context(), userID, purchaseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			utils.SendJSONError(w, "Purchase not found", http.StatusNotFound)
			return
		}
		logger.ErrorFromContext(r.Context(), "Error loading purchase", "purchaseID", purchaseID, "error", err)
		utils.SendJSONError(w, "Error retrieving purchase", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, posting)
}
