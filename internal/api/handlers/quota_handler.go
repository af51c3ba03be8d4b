package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"tarot-api/internal/services"

	"github.com/google/uuid"
)

type QuotaHandler struct {
	ledgerService services.LedgerService
}

func NewQuotaHandler(ledgerService services.LedgerService) *QuotaHandler {
	return &QuotaHandler{ledgerService: ledgerService}
}

// GetQuota reports today's free usage and the credit balance. When the
// caller has no uid yet, one is minted and echoed back so the client
// can persist it in its URL.
func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	if identity == "" {
		identity = mintIdentity()
	}

	stats, err := h.ledgerService.QuotaStatus(r.Context(), identity)
	if err != nil {
		http.Error(w, "Please try again", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"uid":   identity,
		"quota": stats,
	})
}

func mintIdentity() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func identityFromRequest(r *http.Request, fallback string) string {
	if uid := r.URL.Query().Get("uid"); uid != "" {
		return uid
	}
	return fallback
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
