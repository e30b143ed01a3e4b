package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/snipvault/internal/billing/reconciler"
	billingstripe "github.com/dukerupert/snipvault/internal/billing/stripe"
	"github.com/dukerupert/snipvault/internal/handler"
	"github.com/dukerupert/snipvault/internal/middleware"
	"github.com/dukerupert/snipvault/internal/quota"
	"github.com/dukerupert/snipvault/internal/store"
	ws "github.com/dukerupert/snipvault/internal/websocket"
)

type Config struct {
	Stripe                billingstripe.Config
	JWTSecret             string
	IdentityWebhookSecret string
	QuotaLimits           quota.Limits
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	snippetH    *handler.SnippetHandler
	usageH      *handler.UsageHandler
	searchH     *handler.SearchHandler
	checkoutH   *handler.CheckoutHandler
	webhookH    *handler.WebhookHandler
	identityH   *handler.IdentityHandler
	jwtSecret   string
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	snippetStore := store.NewSnippetStore(db)

	limits := cfg.QuotaLimits
	if limits == nil {
		limits = quota.DefaultLimits
	}
	resolver := quota.NewResolver(userStore, snippetStore, limits)
	quotaSvc := quota.NewService(resolver, snippetStore)

	stripeClient := billingstripe.NewClient(cfg.Stripe)
	rec := reconciler.New(userStore, stripeClient, hub, logger.With("component", "reconciler"))

	return &Server{
		db:          db,
		hub:         hub,
		snippetH:    handler.NewSnippetHandler(quotaSvc, snippetStore, hub, logger),
		usageH:      handler.NewUsageHandler(quotaSvc, logger),
		searchH:     handler.NewSearchHandler(snippetStore, logger),
		checkoutH:   handler.NewCheckoutHandler(stripeClient, userStore, logger),
		webhookH:    handler.NewWebhookHandler(stripeClient, rec, logger),
		identityH:   handler.NewIdentityHandler(userStore, cfg.IdentityWebhookSecret, logger),
		jwtSecret:   cfg.JWTSecret,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub so main can stop it on shutdown.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/search", s.searchH.Search)
	outerMux.HandleFunc("GET /api/snippets/{id}", s.optionalAuth(s.snippetH.Get))
	outerMux.HandleFunc("POST /webhooks/stripe", s.rateLimitedHandler(s.webhookH.HandleStripeWebhook))
	outerMux.HandleFunc("POST /webhooks/identity", s.rateLimitedHandler(s.identityH.HandleIdentityWebhook))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret)
	outerMux.Handle("/api/", authMiddleware(protectedMux))
	outerMux.Handle("GET /ws", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// optionalAuth attaches the caller's identity when a valid token is present
// but lets anonymous requests through. GET on a single snippet is public for
// PUBLIC snippets and owner-only for PRIVATE ones, so the handler needs the
// identity without requiring it.
func (s *Server) optionalAuth(h http.HandlerFunc) http.HandlerFunc {
	authed := middleware.RequireAuth(s.jwtSecret)(http.HandlerFunc(h))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			authed.ServeHTTP(w, r)
			return
		}
		h(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Snippet API routes
	mux.HandleFunc("POST /api/snippets", s.snippetH.Create)
	mux.HandleFunc("GET /api/snippets", s.snippetH.List)
	mux.HandleFunc("PUT /api/snippets/{id}", s.snippetH.Update)
	mux.HandleFunc("DELETE /api/snippets/{id}", s.snippetH.Delete)

	// Usage and billing
	mux.HandleFunc("GET /api/usage", s.usageH.Get)
	mux.HandleFunc("POST /api/checkout", s.rateLimitedHandler(s.checkoutH.CreateCheckoutSession))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func(r *http.Request) string {
		return handler.UserIDFromContext(r.Context())
	}))
}
