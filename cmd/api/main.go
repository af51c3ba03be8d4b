package main

import (
	"log"
	"net/http"
	"time"

	"tarot-api/internal/api"
	"tarot-api/internal/api/handlers"
	"tarot-api/internal/cards"
	"tarot-api/internal/config"
	"tarot-api/internal/database"
	"tarot-api/internal/llm"
	"tarot-api/internal/repository"
	"tarot-api/internal/services"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()
	if cfg.LLMAPIKey == "" || cfg.LLMModel == "" {
		log.Fatal("ARK_API_KEY and ARK_MODEL environment variables are required")
	}
	if cfg.StripeSecretKey == "" || cfg.StripePriceID == "" {
		log.Fatal("STRIPE_SECRET_KEY and STRIPE_PRICE_ID environment variables are required")
	}

	// Initialize database connection
	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize card deck
	deck, err := cards.NewDeck(time.Now().UnixNano())
	if err != nil {
		log.Fatal("Failed to load card deck:", err)
	}

	// Initialize cache (optional; falls back to no-op without Redis)
	var cache services.CacheService
	cacheCfg := config.NewCacheConfig()
	if cacheCfg.RedisHost != "" {
		redisCache, err := services.NewRedisCacheService(cacheCfg)
		if err != nil {
			log.Printf("Warning: Redis unavailable, running without cache: %v", err)
			cache = services.NewNoopCacheService()
		} else {
			cache = redisCache
		}
	} else {
		cache = services.NewNoopCacheService()
	}

	// Initialize repositories and services
	ledgerRepo := repository.NewLedgerRepository(db)
	ledgerService := services.NewLedgerService(ledgerRepo, cfg.FreePerDay)
	llmClient := llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	readingService := services.NewReadingService(ledgerService, ledgerRepo, llmClient, deck, cache)
	paymentService := services.NewPaymentService(ledgerService, cfg)

	// Initialize handlers
	router := api.SetupRoutes(db, api.Handlers{
		Reading: handlers.NewReadingHandler(readingService),
		Quota:   handlers.NewQuotaHandler(ledgerService),
		Stripe:  handlers.NewStripeHandler(paymentService, cfg.StripeWebhookSecret),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Stripe-Signature"},
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Server failed:", err)
	}
}
