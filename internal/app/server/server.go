package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"timesheets/internal/domain/audit"
	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/export"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/config"
	"timesheets/internal/platform/db"
	"timesheets/internal/platform/jobs"
	"timesheets/internal/platform/metrics"
	audithandler "timesheets/internal/transport/http/handlers/audit"
	timesheethandler "timesheets/internal/transport/http/handlers/timesheet"
	"timesheets/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler
	Logger  *slog.Logger

	stopJobs context.CancelFunc
}

// NewLogger builds the JSON logger shared by the process and the request log.
func NewLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	format := httplog.SchemaECS.Concise(cfg.Environment != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: format.ReplaceAttr,
	})).With(
		slog.String("app", "timesheets"),
		slog.String("env", cfg.Environment),
	)
}

// New wires stores, services and routes for cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Metrics: metrics.New(), Logger: NewLogger(cfg)}
	slog.SetDefault(app.Logger)

	var (
		entries   timesheet.StoreAPI
		directory employee.Directory
		people    db.EmployeeWriter
		auditLog  audit.Log
		recorder  jobs.RunRecorder
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		app.DB = pool
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				app.Close()
				return nil, fmt.Errorf("migrations failed: %w", err)
			}
		}
		entries = timesheet.NewStore(pool)
		employees := employee.NewStore(pool)
		directory, people = employees, employees
		auditLog = audit.New(pool)
		recorder = jobs.NewPGRecorder(pool)
	default:
		slog.Warn("using in-memory stores, data is lost on restart")
		entries = timesheet.NewMemoryStore()
		employees := employee.NewMemoryDirectory()
		directory, people = employees, employees
		auditLog = audit.NewMemory()
	}

	if cfg.SeedFile != "" {
		if err := seedEmployees(ctx, people, cfg.SeedFile); err != nil {
			app.Close()
			return nil, err
		}
	}

	var results jobs.ResultStore
	if cfg.RedisAddr != "" {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := app.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		results = jobs.NewRedisResults(app.Redis)
	}

	app.Jobs = jobs.New(jobs.Options{
		Workers:   cfg.ExportWorkers,
		QueueSize: cfg.ExportQueueSize,
		Timeout:   cfg.ExportTimeout,
		ResultTTL: cfg.ExportResultTTL,
	}, results, recorder)
	app.Jobs.OnFinish = func(run jobs.Run) {
		app.Metrics.RecordExport("async." + string(run.Status))
	}
	jobsCtx, stop := context.WithCancel(context.Background())
	app.stopJobs = stop
	app.Jobs.Start(jobsCtx)

	svc := timesheet.NewService(entries, timesheet.Policy{
		RequireEmployeeApproval: cfg.RequireEmployeeApproval,
		AutoSubmit:              cfg.AutoSubmitOnClockOut,
	}, cfg.WeekStartDay, loc)
	svc.Audit = auditLog

	exporter := export.NewExporter(export.NewAggregator(entries, directory, cfg.WeekStartDay, loc), cfg.ExportMaxDays)
	perms := auth.StaticPermissions{}

	tsHandler := timesheethandler.NewHandler(timesheet.NewWorkflow(svc), exporter, app.Jobs, perms)
	tsHandler.Metrics = app.Metrics
	if cfg.ExportRateLimit > 0 {
		tsHandler.ExportLimit = middleware.RateLimit(cfg.ExportRateLimit, cfg.ExportRateWindow)
	}
	auditHandler := audithandler.NewHandler(auditLog, perms)

	app.Router = app.routes(func(r chi.Router) {
		tsHandler.RegisterRoutes(r)
		auditHandler.RegisterRoutes(r)
	})
	return app, nil
}

func seedEmployees(ctx context.Context, store db.EmployeeWriter, path string) error {
	records, err := db.LoadEmployees(path)
	if err != nil {
		return fmt.Errorf("seed employees failed: %w", err)
	}
	n, err := db.Seed(ctx, store, records)
	if err != nil {
		return fmt.Errorf("seed employees failed: %w", err)
	}
	slog.Info("employee directory seeded", "file", path, "employees", n)
	return nil
}

func (a *App) routes(api func(chi.Router)) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Location", middleware.RequestIDHeader},
		MaxAge:           300,
	}))
	router.Use(middleware.RequestID)
	router.Use(httplog.RequestLogger(a.Logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	router.Use(chimw.CleanPath)
	router.Use(chimw.Recoverer)
	router.Use(chimw.RequestSize(cfg.MaxBodyBytes))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(a.Metrics))
	}
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if a.DB != nil {
			if err := a.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if a.Redis != nil {
			if err := a.Redis.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeMetrics(w, a.Metrics.Snapshot())
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		api(r)
	})
	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("timesheets server listening", "addr", a.Config.Addr, "store", a.Config.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.stopJobs != nil {
		a.stopJobs()
		a.Jobs.Wait()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func writeMetrics(w http.ResponseWriter, snapshot map[string]any) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	var b strings.Builder
	for _, key := range []string{"requestsTotal", "errorsTotal", "clientErrorsTotal", "conflictsTotal", "avgDurationMs", "totalDurationMs"} {
		fmt.Fprintf(&b, "timesheets_%s %v\n", key, snapshot[key])
	}
	if exports, ok := snapshot["exportsTotal"].(map[string]uint64); ok {
		outcomes := make([]string, 0, len(exports))
		for outcome := range exports {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)
		for _, outcome := range outcomes {
			fmt.Fprintf(&b, "timesheets_exports_total{outcome=%q} %d\n", outcome, exports[outcome])
		}
	}
	_, _ = w.Write([]byte(b.String()))
}
