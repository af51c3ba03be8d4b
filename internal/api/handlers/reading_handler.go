package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "tarot-api/internal/pkg/errors"
	"tarot-api/internal/services"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type ReadingHandler struct {
	readingService services.ReadingService
}

func NewReadingHandler(readingService services.ReadingService) *ReadingHandler {
	return &ReadingHandler{
		readingService: readingService,
	}
}

func (h *ReadingHandler) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req services.ReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Identity = identityFromRequest(r, req.Identity)
	if req.Identity == "" {
		http.Error(w, "Missing uid", http.StatusBadRequest)
		return
	}

	result, err := h.readingService.GenerateReading(r.Context(), req)
	if err != nil {
		h.respondReadingError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReadingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	if identity == "" {
		http.Error(w, "Missing uid", http.StatusBadRequest)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	readings, err := h.readingService.History(r.Context(), identity, limit)
	if err != nil {
		http.Error(w, "Please try again", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"readings": readings})
}

func (h *ReadingHandler) respondReadingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		respondWithJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "quota_exceeded",
			"detail": "Today's free reading is used up. Unlock a deep reading to continue.",
		})
	case errors.Is(err, apperrors.ErrInsufficientCredit):
		respondWithJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "insufficient_credit",
			"detail": "No deep-reading credits left. Purchase one to continue.",
		})
	case errors.Is(err, apperrors.ErrInvalidInput):
		http.Error(w, "Invalid input", http.StatusBadRequest)
	default:
		http.Error(w, "Please try again", http.StatusInternalServerError)
	}
}
