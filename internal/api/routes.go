package api

import (
	"net/http"

	"tarot-api/internal/api/handlers"
	"tarot-api/internal/middleware"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handlers struct {
	Reading *handlers.ReadingHandler
	Quota   *handlers.QuotaHandler
	Stripe  *handlers.StripeHandler
}

func SetupRoutes(db *gorm.DB, h Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest)

	router.HandleFunc("/api/readings", h.Reading.CreateReading).Methods("POST")
	router.HandleFunc("/api/readings", h.Reading.GetHistory).Methods("GET")
	router.HandleFunc("/api/quota", h.Quota.GetQuota).Methods("GET")
	router.HandleFunc("/api/checkout", h.Stripe.HandleCreateCheckout).Methods("POST")
	router.HandleFunc("/api/checkout/confirm", h.Stripe.HandleConfirmCheckout).Methods("GET")
	router.HandleFunc("/api/stripe/webhook", h.Stripe.HandleStripeWebhook).Methods("POST")
	router.HandleFunc("/health", handlers.HealthCheckHandler(db)).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return router
}
