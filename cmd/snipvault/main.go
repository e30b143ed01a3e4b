package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	billingstripe "github.com/dukerupert/snipvault/internal/billing/stripe"
	"github.com/dukerupert/snipvault/internal/database"
	"github.com/dukerupert/snipvault/internal/logging"
	"github.com/dukerupert/snipvault/internal/server"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("SNIPVAULT_LOG_LEVEL"), os.Getenv("SNIPVAULT_LOG_FORMAT"))

	port := os.Getenv("SNIPVAULT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SNIPVAULT_DB_PATH")
	if dbPath == "" {
		dbPath = "snipvault.db"
	}

	baseURL := os.Getenv("SNIPVAULT_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	jwtSecret := os.Getenv("SNIPVAULT_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("SNIPVAULT_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		Stripe: billingstripe.Config{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			GoldPriceID:    os.Getenv("STRIPE_GOLD_PRICE_ID"),
			DiamondPriceID: os.Getenv("STRIPE_DIAMOND_PRICE_ID"),
			SuccessURL:     baseURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:      baseURL + "/pricing",
		},
		JWTSecret:             jwtSecret,
		IdentityWebhookSecret: os.Getenv("SNIPVAULT_IDENTITY_WEBHOOK_SECRET"),
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("snipvault starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
