package main

import (
	"flag"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bipedhq/armor/pkg/auth"
	"github.com/bipedhq/armor/pkg/config"
	"github.com/bipedhq/armor/pkg/csrf"
	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/metrics"
	"github.com/bipedhq/armor/pkg/middleware"
	"github.com/bipedhq/armor/pkg/ratelimit"
	"github.com/bipedhq/armor/pkg/ratelimit/redisstore"
	"github.com/bipedhq/armor/pkg/sanitize"
	"github.com/bipedhq/armor/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewDefaultLogger().Error("invalid configuration", logging.Error(err))
		os.Exit(1)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	authority, err := auth.NewAuthority(cfg.SigningSecret, cfg.Issuer, logger)
	if err != nil {
		logger.Error("failed to create token authority", logging.Error(err))
		os.Exit(1)
	}

	guard := csrf.NewGuard(&csrf.Config{
		TokenTTL: cfg.CSRFTokenTTL,
		Rotate:   cfg.CSRFRotate,
	}, logger)

	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		SweepInterval:    cfg.SweepInterval,
		ClientExpiration: 2 * cfg.SweepInterval,
		MaxClients:       cfg.MaxClients,
	}, logger)
	defer limiter.Stop()

	// The in-process limiter is the reference design; a Redis address
	// switches quota tracking to the shared store for multi-instance
	// deployments.
	var quota middleware.Quota = limiter
	if cfg.RedisAddr != "" {
		store, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr}, logger)
		if err != nil {
			logger.Error("failed to connect shared rate-limit store", logging.Error(err))
			os.Exit(1)
		}
		defer store.Close()
		quota = store
		logger.Info("using shared rate-limit store", logging.String("addr", cfg.RedisAddr))
	}

	registry := metrics.NewRegistry()
	trusted := middleware.ParseTrustedProxies(cfg.TrustedProxies)

	app := &application{
		cfg:       cfg,
		logger:    logger,
		authority: authority,
		guard:     guard,
		limiter:   limiter,
		sanitizer: sanitize.NewSanitizer(),
		metrics:   registry,
	}

	r := chi.NewRouter()

	// Outer chain: every request passes these in order.
	r.Use(
		middleware.PanicRecovery(logger),
		middleware.RequestID(),
		middleware.RequestLogging(logger),
		middleware.Metrics(registry),
		middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{}),
		middleware.BodySizeLimit(cfg.MaxBodyBytes),
	)

	generalLimit := middleware.RateLimit(middleware.RateLimitOptions{
		Quota:   quota,
		Preset:  presetFromConfig(cfg, "general", ratelimit.PresetGeneral),
		KeyFunc: app.clientKey(trusted),
		Logger:  logger,
		Metrics: registry,
	})
	authLimit := middleware.RateLimit(middleware.RateLimitOptions{
		Quota:   quota,
		Preset:  presetFromConfig(cfg, "auth", ratelimit.PresetAuth),
		KeyFunc: app.clientKey(trusted),
		Logger:  logger,
		Metrics: registry,
	})
	strictLimit := middleware.RateLimit(middleware.RateLimitOptions{
		Quota:   quota,
		Preset:  presetFromConfig(cfg, "strict", ratelimit.PresetStrict),
		KeyFunc: app.clientKey(trusted),
		Logger:  logger,
		Metrics: registry,
	})

	requireAuth := middleware.RequireAuth(middleware.AuthOptions{
		Authority: authority,
		Audience:  cfg.Audience,
		Issuer:    cfg.Issuer,
		Logger:    logger,
		Metrics:   registry,
	})
	csrfCheck := middleware.CSRF(middleware.CSRFOptions{
		Guard:     guard,
		SessionID: sessionFromRequest,
		Logger:    logger,
		Metrics:   registry,
	})

	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/auth/login", app.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(generalLimit, requireAuth)
		r.Post("/auth/refresh", app.handleRefresh)
		r.Post("/auth/logout", app.handleLogout)
		r.Get("/auth/csrf-token", app.handleCSRFToken)
		r.Get("/api/me", app.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(strictLimit, requireAuth, csrfCheck)
		r.Post("/api/listings", app.handleCreateListing)
	})

	r.Group(func(r chi.Router) {
		r.Use(generalLimit, requireAuth, middleware.RequireRole("admin"))
		r.Get("/api/admin/stats", app.handleStats)
	})

	r.Get("/healthz", app.handleHealth)
	r.Method("GET", "/metrics", promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{}))

	srv := server.NewGracefulServer(cfg.ListenAddr, r, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server error", logging.Error(err))
		os.Exit(1)
	}
}

func presetFromConfig(cfg *config.Config, name string, fallback ratelimit.Preset) ratelimit.Preset {
	if p, ok := cfg.Presets[name]; ok {
		return ratelimit.Preset{Name: name, MaxRequests: p.MaxRequests, Window: p.Window}
	}
	return fallback
}
