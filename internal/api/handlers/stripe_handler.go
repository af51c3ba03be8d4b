package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	apperrors "tarot-api/internal/pkg/errors"
	"tarot-api/internal/services"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

type StripeHandler struct {
	paymentService services.PaymentService
	webhookSecret  string
}

func NewStripeHandler(paymentService services.PaymentService, webhookSecret string) *StripeHandler {
	return &StripeHandler{
		paymentService: paymentService,
		webhookSecret:  webhookSecret,
	}
}

func (h *StripeHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	identity := identityFromRequest(r, req.UID)
	if identity == "" {
		http.Error(w, "Missing uid", http.StatusBadRequest)
		return
	}

	url, err := h.paymentService.CreateCheckoutSession(r.Context(), identity)
	if err != nil {
		http.Error(w, "Error creating checkout session", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"checkoutUrl": url})
}

// HandleConfirmCheckout backs the success redirect from Stripe. The
// same session_id may arrive many times (reloads, bookmarks); the
// ledger makes repeats report success without crediting again.
func (h *StripeHandler) HandleConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromRequest(r, "")
	sessionID := r.URL.Query().Get("session_id")

	if identity == "" || sessionID == "" {
		http.Error(w, "Missing uid or session_id", http.StatusBadRequest)
		return
	}

	credited, err := h.paymentService.ConfirmCheckoutSession(r.Context(), identity, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrPaymentNotPaid):
			respondWithJSON(w, http.StatusConflict, map[string]string{
				"error":  "payment_not_completed",
				"detail": "The payment has not completed yet.",
			})
		case errors.Is(err, apperrors.ErrPaymentMismatch):
			http.Error(w, "Payment does not match this user", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrInvalidInput):
			http.Error(w, "Invalid input", http.StatusBadRequest)
		default:
			http.Error(w, "Please try again", http.StatusInternalServerError)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"credited": credited,
		"detail":   "Payment confirmed; deep-reading credit applied.",
	})
}

func (h *StripeHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading request body: %v\n", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying webhook signature: %v\n", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing webhook JSON: %v\n", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.paymentService.ApplyCompletedSession(r.Context(), &session); err != nil {
			// Unpaid or malformed sessions are terminal; only storage
			// faults warrant a retry from Stripe.
			if errors.Is(err, apperrors.ErrPaymentNotPaid) || errors.Is(err, apperrors.ErrInvalidInput) {
				fmt.Fprintf(os.Stderr, "Ignoring checkout session %s: %v\n", session.ID, err)
			} else {
				fmt.Fprintf(os.Stderr, "Error applying checkout session: %v\n", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unhandled event type: %s\n", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}
