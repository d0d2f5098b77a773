package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/locvowork/employee_directory/internal/cache"
	"github.com/locvowork/employee_directory/internal/config"
	"github.com/locvowork/employee_directory/internal/database"
	"github.com/locvowork/employee_directory/internal/export"
	"github.com/locvowork/employee_directory/internal/handler"
	"github.com/locvowork/employee_directory/internal/imagestore"
	"github.com/locvowork/employee_directory/internal/logger"
	"github.com/locvowork/employee_directory/internal/metrics"
	"github.com/locvowork/employee_directory/internal/repository"
	"github.com/locvowork/employee_directory/internal/scheduler"
	"github.com/locvowork/employee_directory/internal/service"
	"github.com/locvowork/employee_directory/internal/source/cvpartner"
	"github.com/locvowork/employee_directory/internal/source/httpx"
	"github.com/locvowork/employee_directory/internal/source/vibes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const imagesPath = "/images"

type App struct {
	Echo *echo.Echo
	DB   *sqlx.DB

	Metrics     *metrics.Metrics
	Cache       cache.Store
	Images      *imagestore.LocalStore
	EmployeeSvc service.EmployeeService
	SyncSvc     *service.SyncService
	Schedule    *scheduler.Daily

	closers []func() error
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	return &App{Echo: e}
}

// Initialize loads configuration and builds every dependency. Optional
// integrations (Vibes, Elasticsearch, Redis) stay off when unconfigured.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitializeCore(ctx); err != nil {
		return err
	}
	if config.DefaultEnvConfig.DB_AUTO_MIGRATE {
		if err := database.Migrate(ctx, a.DB.DB); err != nil {
			return err
		}
		logger.InfoLog(ctx, "Database migrations applied")
	}

	empRepo := repository.NewEmployeeRepository(a.DB)
	projectRepo := repository.NewProjectExperienceRepository(a.DB)

	cfg := config.DefaultEnvConfig
	syncFile, err := config.LoadSyncFileConfig(cfg.SYNC_CONFIG_PATH)
	if err != nil {
		return err
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(reg)

	// response cache
	a.Cache = cache.NopStore{}
	if cfg.REDIS_URL != "" {
		rs, err := cache.NewRedisStore(cfg.REDIS_URL)
		if err != nil {
			return fmt.Errorf("failed to configure redis: %w", err)
		}
		if err := rs.Ping(ctx); err != nil {
			logger.WarnLog(ctx, "Redis not reachable, responses will not be cached until it is: %v", err)
		}
		a.Cache = rs
		a.closers = append(a.closers, rs.Close)
	}

	// search index
	var index service.SearchIndex
	if cfg.ELASTIC_URL != "" {
		es, err := database.NewElasticSearchClient(cfg.ELASTIC_URL, cfg.ELASTIC_INDEX)
		if err != nil {
			logger.WarnLog(ctx, "Elasticsearch disabled: %v", err)
		} else {
			index = es
		}
	}

	// external sources
	baseHTTP := &http.Client{Timeout: cfg.SOURCE_HTTP_TIMEOUT}
	retry := httpx.DefaultRetryConfig()
	retry.MaxAttempts = cfg.SOURCE_HTTP_MAX_ATTEMPTS
	sourceHTTP := httpx.NewClient(baseHTTP, retry)

	cvClient := cvpartner.NewClient(cfg.CVPARTNER_BASE_URL, cfg.CVPARTNER_TOKEN, sourceHTTP)
	var employments service.EmploymentSource
	if cfg.VIBES_BASE_URL != "" {
		employments = vibes.NewClient(ctx, vibes.Config{
			BaseURL:      cfg.VIBES_BASE_URL,
			TokenURL:     cfg.VIBES_TOKEN_URL,
			ClientID:     cfg.VIBES_CLIENT_ID,
			ClientSecret: cfg.VIBES_CLIENT_SECRET,
			Scope:        cfg.VIBES_SCOPE,
		}, baseHTTP, retry)
	} else {
		logger.WarnLog(ctx, "VIBES_BASE_URL not set, employment dates will not be synced")
	}

	a.Images, err = imagestore.NewLocalStore(cfg.IMAGE_DIR, cfg.PUBLIC_BASE_URL+imagesPath, sourceHTTP, cfg.IMAGE_FORCE_UPLOAD)
	if err != nil {
		return err
	}

	workers := cfg.SYNC_WORKERS
	if syncFile.Workers > 0 {
		workers = syncFile.Workers
	}
	a.SyncSvc = service.NewSyncService(cvClient, employments, empRepo, projectRepo, service.SyncOptions{
		Workers:         workers,
		ExcludedUserIDs: syncFile.Excluded(),
		Images:          a.Images,
		Index:           index,
		Cache:           a.Cache,
		Metrics:         a.Metrics,
	})
	a.EmployeeSvc = service.NewEmployeeService(empRepo, projectRepo, index)

	if cfg.SYNC_ENABLED {
		at := cfg.SYNC_AT
		if syncFile.Schedule != "" {
			at = syncFile.Schedule
		}
		a.Schedule, err = scheduler.NewDaily(at, time.Local, func(ctx context.Context) error {
			_, err := a.SyncSvc.RunSync(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	empHandler := handler.NewEmployeeHandler(a.EmployeeSvc, export.NewExporter(nil))
	adminHandler := handler.NewAdminHandler(a.SyncSvc)

	a.RegisterMiddlewares()
	a.RegisterRoutes(empHandler, adminHandler)

	return nil
}

// InitializeCore loads configuration, logging and the database. CLI
// commands that only need the database stop here.
func (a *App) InitializeCore(ctx context.Context) error {
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL)
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	dbConfig := database.Config{
		Host:            cfg.DB_HOST,
		Port:            cfg.DB_PORT,
		User:            cfg.DB_USER,
		Password:        cfg.DB_PASSWORD,
		DBName:          cfg.DB_NAME,
		SSLMode:         cfg.DB_SSL_MODE,
		MaxOpenConns:    cfg.DB_MAX_OPEN_CONNS,
		MaxIdleConns:    cfg.DB_MAX_IDLE_CONNS,
		ConnMaxLifetime: cfg.DB_CONN_MAX_LIFETIME,
	}

	db, err := database.NewPostgresDB(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(middleware.RequestID())
	a.Echo.Use(logger.RequestLogger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.DefaultEnvConfig.CORS_ALLOWED_ORIGINS,
	}))
	a.Echo.Use(a.Metrics.Middleware())
}

func (a *App) RegisterRoutes(empHandler *handler.EmployeeHandler, adminHandler *handler.AdminHandler) {
	a.Echo.GET("/healthcheck", empHandler.HealthcheckHandler)
	a.Echo.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	a.Echo.Static(imagesPath, a.Images.Dir())

	cached := cache.Middleware(a.Cache, config.DefaultEnvConfig.CACHE_TTL)
	employees := a.Echo.Group("/employees")
	employees.GET("", empHandler.ListHandler, cached)
	employees.GET("/extended", empHandler.ListExtendedHandler, cached)
	employees.GET("/allergies", empHandler.AllergiesHandler)
	employees.GET("/dietaryPreferences", empHandler.DietaryPreferencesHandler)
	employees.GET("/competencies", empHandler.CompetenciesHandler, cached)
	employees.GET("/cv", empHandler.CvHandler, cached)
	employees.GET("/cv/projectExperiences", empHandler.ProjectExperiencesHandler, cached)
	employees.GET("/search", empHandler.SearchHandler)
	employees.GET("/export", empHandler.ExportHandler)
	employees.GET("/:alias", empHandler.GetHandler, cached)
	employees.GET("/:alias/extended", empHandler.GetExtendedHandler, cached)

	purge := a.purgeAfterWrite()
	employees.POST("/emergencyContact/:country/:alias", empHandler.EmergencyContactHandler, purge)
	employees.POST("/allergiesAndDietaryPreferences/:country/:alias", empHandler.AllergiesAndDietaryPreferencesHandler, purge)

	admin := a.Echo.Group("/admin")
	admin.POST("/sync", adminHandler.SyncHandler)
}

// purgeAfterWrite drops cached responses once a write succeeded.
func (a *App) purgeAfterWrite() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if c.Response().Status < http.StatusBadRequest {
				if err := a.Cache.Purge(c.Request().Context()); err != nil {
					logger.WarnLog(c.Request().Context(), "Failed to purge response cache: %v", err)
				}
			}
			return nil
		}
	}
}

// Run serves HTTP and the daily sync until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.Schedule != nil {
		go func() {
			if err := a.Schedule.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorLog(ctx, "Scheduler stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Echo.Start(":" + config.DefaultEnvConfig.APP_PORT)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.InfoLog(context.Background(), "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.WarnLog(context.Background(), "Close failed: %v", err)
		}
	}
	a.closers = nil
}
