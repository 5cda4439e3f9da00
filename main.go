package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/ledgerly/backend/src/config"
	"github.com/username/ledgerly/backend/src/database"
	"github.com/username/ledgerly/backend/src/handlers"
	"github.com/username/ledgerly/backend/src/logger"
	"github.com/username/ledgerly/backend/src/models"
	"github.com/username/ledgerly/backend/src/money"
	"github.com/username/ledgerly/backend/src/schedule"
	"github.com/username/ledgerly/backend/src/security"
	"github.com/username/ledgerly/backend/src/services"
	"github.com/username/ledgerly/backend/src/storage"
	"github.com/username/ledgerly/backend/src/utils"
	"golang.org/x/time/rate"
)

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// notFoundHandler keeps unknown API routes on the JSON error contract; other
// unknown paths get the plain 404.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		utils.SendJSONError(w, "Not found", http.StatusNotFound)
		return
	}
	http.NotFound(w, r)
}

// runSweepScheduler ticks at the configured interval and runs the sweep for
// every user. The first sweep of a new month in UTC runs in monthly mode so
// cycle-run alerts fire once per cycle.
func runSweepScheduler(ctx context.Context, sweepService services.SweepService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastCycleKey := ""
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Sweep scheduler stopping")
			return
		case <-ticker.C:
			mode := models.SweepHourly
			cycleKey := time.Now().UTC().Format("2006-01")
			if cycleKey != lastCycleKey {
				mode = models.SweepMonthly
				lastCycleKey = cycleKey
			}
			result := sweepService.RunAll(ctx, mode)
			logger.L.Info("Sweep completed",
				"mode", result.Mode,
				"users", result.UsersSwept,
				"alertsCreated", result.AlertsCreated,
				"alertsUpdated", result.AlertsUpdated,
				"alertsResolved", result.AlertsResolved,
				"suggestionsCreated", result.SuggestionsCreated)
		}
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Ledgerly backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath, config.Cfg.MigrationsPath)

	store := storage.NewSQLiteStore(database.DB)

	fractionOverrides, err := store.CurrencyFractionDigits(context.Background())
	if err != nil {
		logger.L.Warn("Failed to load currency fraction overrides, using ISO defaults", "error", err)
		fractionOverrides = nil
	}
	converter := money.NewConverter(fractionOverrides)
	clock := schedule.NewClock(config.Cfg.DefaultTimezone)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	fxService := services.NewFxService(store)
	auditService := services.NewAuditService(store, config.Cfg.AuditQueueSize)
	defer auditService.Close()

	sweepDefaults := services.SweepDefaults{
		Timezone:        config.Cfg.DefaultTimezone,
		BaseCurrency:    config.Cfg.DefaultBaseCurrency,
		DueReminderDays: config.Cfg.DefaultDueReminderDays,
	}
	sweepService := services.NewSweepService(store, clock, converter, fxService, auditService, sweepDefaults)
	ledgerService := services.NewLedgerService(store, converter, fxService, auditService, config.Cfg.DefaultBaseCurrency)

	alertHandler := handlers.NewAlertHandler(store)
	suggestionHandler := handlers.NewSuggestionHandler(store)
	purchaseHandler := handlers.NewPurchaseHandler(ledgerService, store)
	sweepHandler := handlers.NewSweepHandler(sweepService)
	cycleHandler := handlers.NewCycleHandler(store, clock, config.Cfg.DefaultTimezone)

	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS(config.Cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Ledgerly Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(authService))

			r.Get("/alerts", alertHandler.HandleListAlerts)
			r.Post("/alerts/{alertID}/snooze", alertHandler.HandleSnoozeAlert)
			r.Post("/alerts/{alertID}/resolve", alertHandler.HandleResolveAlert)

			r.Get("/suggestions", suggestionHandler.HandleListSuggestions)
			r.Post("/suggestions/{suggestionID}/review", suggestionHandler.HandleReviewSuggestion)

			r.Post("/purchases", purchaseHandler.HandlePostPurchase)
			r.Get("/purchases/{purchaseID}", purchaseHandler.HandleGetPurchase)

			r.Post("/sweep", sweepHandler.HandleRunSweep)
			r.Post("/cycle/complete", cycleHandler.HandleCompleteCycle)
		})
	})

	r.NotFound(notFoundHandler)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go runSweepScheduler(schedCtx, sweepService, config.Cfg.SweepInterval)

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.L.Info("Shutdown signal received")
		stopScheduler()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Server shutdown error", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
