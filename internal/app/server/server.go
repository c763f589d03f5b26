package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/db"
	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/domain/notifications"
	"kpitrack/internal/domain/org"
	"kpitrack/internal/domain/report"
	"kpitrack/internal/domain/result"
	"kpitrack/internal/platform/config"
	platformdb "kpitrack/internal/platform/db"
	"kpitrack/internal/platform/email"
	"kpitrack/internal/platform/jobs"
	"kpitrack/internal/platform/metrics"
	"kpitrack/internal/transport/http/api"
	audithandler "kpitrack/internal/transport/http/handlers/audit"
	authhandler "kpitrack/internal/transport/http/handlers/auth"
	directoryhandler "kpitrack/internal/transport/http/handlers/directory"
	jobshandler "kpitrack/internal/transport/http/handlers/jobs"
	kpihandler "kpitrack/internal/transport/http/handlers/kpi"
	notificationshandler "kpitrack/internal/transport/http/handlers/notifications"
	orghandler "kpitrack/internal/transport/http/handlers/org"
	reporthandler "kpitrack/internal/transport/http/handlers/reports"
	resulthandler "kpitrack/internal/transport/http/handlers/results"
	"kpitrack/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service
}

// New wires the application: pool, migrations, seed, services, router.
// It does not start listening; Run and the tests drive the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrationsDir()); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := platformdb.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore)
	positionStore := org.NewStore(pool)
	directoryStore := directory.NewStore(pool)
	directoryService := directory.NewService(directoryStore)
	kpiStore := kpi.NewStore(pool)
	resultStore := result.NewStore(pool)
	resultService := result.NewService(resultStore, kpiStore)
	reportStore := report.NewStore(pool)
	reportService := report.NewService(reportStore)
	auditService := audit.New(pool)

	mailer := email.New(cfg)
	notifyStore := notifications.NewStore(pool)
	notifyService := notifications.New(notifyStore, mailer)
	notifyService.DefaultFrom = cfg.EmailFrom

	jobService := jobs.New(pool, cfg, reportService, notifyService, mailer)

	idemStore := middleware.NewIdempotencyStore(pool)
	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(observe(collector))
	router.Use(middleware.Logger)
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metricsz", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authService, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Post("/auth/refresh", authHandler.HandleRefresh)

		orghandler.NewHandler(positionStore, auditService, authStore).RegisterRoutes(r)
		directoryhandler.NewHandler(directoryService, auditService, authStore).RegisterRoutes(r)
		kpihandler.NewHandler(kpiStore, auditService, authStore).RegisterRoutes(r)
		resulthandler.NewHandler(resultService, positionStore, directoryStore, notifyService, auditService, idemStore, authStore).RegisterRoutes(r)
		reporthandler.NewHandler(reportService, jobService, authStore).RegisterRoutes(r)
		notificationshandler.NewHandler(notifyService, authStore).RegisterRoutes(r)
		audithandler.NewHandler(auditService, authStore).RegisterRoutes(r)
		jobshandler.NewHandler(jobService, authStore).RegisterRoutes(r)
	})

	return &App{Config: cfg, DB: pool, Router: router, Jobs: jobService}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

// migrationsDir finds the migrations directory relative to the working
// directory, walking up so package tests resolve it from their own dir.
func migrationsDir() string {
	dir := "migrations"
	for i := 0; i < 6; i++ {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		dir = filepath.Join("..", dir)
	}
	return "migrations"
}

func Run() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("kpitrack server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown failed: %v", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func observe(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			collector.Record(recorder.status, time.Since(start))
		})
	}
}
