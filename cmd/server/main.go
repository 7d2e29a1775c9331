package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsim "github.com/trafficsim/backend/internal/application/simulation"
	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/infrastructure/auth"
	"github.com/trafficsim/backend/internal/infrastructure/browser"
	"github.com/trafficsim/backend/internal/infrastructure/config"
	"github.com/trafficsim/backend/internal/infrastructure/event"
	"github.com/trafficsim/backend/internal/infrastructure/logger"
	"github.com/trafficsim/backend/internal/infrastructure/notify"
	"github.com/trafficsim/backend/internal/infrastructure/persistence"
	"github.com/trafficsim/backend/internal/infrastructure/storage"
	"github.com/trafficsim/backend/internal/infrastructure/telemetry"
	"github.com/trafficsim/backend/internal/interfaces/http/handler"
	"github.com/trafficsim/backend/internal/interfaces/http/middleware"
	"github.com/trafficsim/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/trafficsim/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Traffic Simulator API
//	@version		1.0
//	@description	Web traffic simulation service - orchestrates realistic browser sessions against a target site

//	@contact.name	API Support
//	@contact.url	https://github.com/trafficsim/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting traffic simulator",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Telemetry providers. Each constructor returns a no-op provider
	// when its section is disabled, so the wiring below stays flat.
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdownWithTimeout(tracerProvider.Shutdown, log, "tracer provider")

	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownWithTimeout(meterProvider.Shutdown, log, "meter provider")

	if cfg.Telemetry.ProfilingEnabled {
		profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:             true,
			ServerAddress:       cfg.Telemetry.PyroscopeAddress,
			ApplicationName:     cfg.Telemetry.ServiceName,
			ProfileCPU:          true,
			ProfileAllocObjects: true,
			ProfileAllocSpace:   true,
			ProfileInuseObjects: true,
			ProfileInuseSpace:   true,
			ProfileGoroutines:   true,
			Tags:                map[string]string{"env": cfg.App.Env},
		}, log)
		if err != nil {
			log.Warn("Failed to start profiler", zap.Error(err))
		} else {
			defer func() {
				_ = profiler.Stop()
			}()
			if err := tracerProvider.EnableSpanProfiles(); err != nil {
				log.Warn("Failed to enable span profiles", zap.Error(err))
			}
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Postgres schemas are managed by the migrate CLI; sqlite gets its
	// schema on startup so the single-binary mode needs no extra step
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	// Database query tracing
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        cfg.Database.Driver,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Database pool and query metrics
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	} else if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(rootCtx)
		defer dbMetrics.Stop()
	}

	// Run persistence
	runRepo := persistence.NewGormRunRepository(db.DB)

	// Visitor profile store: local filesystem by default, S3-compatible
	// object storage when configured
	var profileStore traffic.ProfileStore
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ProfileStore(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize S3 profile store", zap.Error(err))
		}
		profileStore = s3Store
		log.Info("Profile store: s3", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		fileStore, err := storage.NewFileProfileStore(cfg.Profiles.Dir)
		if err != nil {
			log.Fatal("Failed to initialize profile store", zap.Error(err))
		}
		profileStore = fileStore
		log.Info("Profile store: filesystem", zap.String("dir", cfg.Profiles.Dir))
	}

	// Browser capability
	capability, err := browser.New(&cfg.Browser, log)
	if err != nil {
		log.Fatal("Failed to initialize browser capability", zap.Error(err))
	}
	log.Info("Browser capability ready", zap.String("engine", cfg.Browser.Engine))

	// Event bus with SSE hub and optional Redis fan-out
	bus := event.NewInMemoryEventBus(log)
	hub := notify.NewHub(cfg.Simulation.EventBufferSize, log)
	bus.Subscribe(hub)

	if cfg.Redis.Enabled {
		redisPublisher, err := notify.NewRedisPublisher(&cfg.Redis, cfg.Simulation.ProgressChannelPrefix, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisPublisher.Close(); err != nil {
				log.Error("Error closing Redis publisher", zap.Error(err))
			}
		}()
		bus.Subscribe(redisPublisher)
		log.Info("Redis progress publishing enabled", zap.String("prefix", cfg.Simulation.ProgressChannelPrefix))
	}

	if err := bus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Stop(stopCtx); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Simulation application service
	simService := appsim.NewService(runRepo, capability, profileStore, bus, log)
	simService.SetMaxActiveRuns(cfg.Simulation.MaxActiveRuns)
	simService.SetListLimit(cfg.Simulation.ListLimit)

	// Run metrics with backlog gauge collection
	if cfg.Telemetry.Enabled {
		runMetrics, err := telemetry.NewRunMetrics(telemetry.RunMetricsConfig{
			Meter:            meterProvider.Meter("trafficsim"),
			Logger:           log,
			ActivityProvider: telemetry.NewGormRunActivityProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize run metrics", zap.Error(err))
		} else {
			runMetrics.StartPeriodicCollection(rootCtx, 0)
			defer runMetrics.Stop()
			simService.SetRunMetrics(runMetrics)
		}
	}

	// Operator authentication
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist
	if cfg.Redis.Enabled {
		blacklist = auth.NewRedisTokenBlacklistWithClient(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		blacklist = auth.NewInMemoryTokenBlacklist()
	}

	// Initialize HTTP handlers
	runHandler := handler.NewRunHandler(simService)
	runEventsHandler := handler.NewRunEventsHandler(hub, handler.WithEventsLogger(log))
	authHandler := handler.NewAuthHandler(cfg.Auth, jwtService, blacklist)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing/Metrics/Profiling - Telemetry (no-ops when disabled)
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("trafficsim/http"), cfg.Telemetry.Enabled))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Swagger documentation endpoint
	if cfg.Swagger.Enabled {
		swaggerProtection := middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, middleware.JWTAuthMiddleware(jwtService))
		engine.GET("/swagger/*any", swaggerProtection, ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes when operator
	// auth is enabled. Login and refresh stay public; the SSE stream
	// authenticates via the access_token query parameter.
	if cfg.Auth.Enabled {
		jwtConfig := middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: blacklist,
			SkipPaths: []string{
				"/api/v1/auth/login",
				"/api/v1/auth/refresh",
				"/api/v1/system/ping",
				"/api/v1/system/info",
			},
			Logger: log,
		}
		r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))
	} else {
		log.Warn("Operator authentication disabled")
	}

	// Auth routes
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.RefreshToken)
	authRoutes.POST("/logout", authHandler.Logout)
	authRoutes.GET("/me", authHandler.Me)

	// Simulation routes
	simulationRoutes := router.NewDomainGroup("simulation", "/simulation")
	simulationRoutes.POST("/runs", runHandler.Start)
	simulationRoutes.GET("/runs", runHandler.List)
	simulationRoutes.GET("/runs/:id", runHandler.Get)
	simulationRoutes.POST("/runs/:id/stop", runHandler.Stop)
	simulationRoutes.GET("/runs/:id/events", runEventsHandler.Stream)
	simulationRoutes.POST("/config/validate", runHandler.Validate)
	simulationRoutes.GET("/config/default", runHandler.DefaultConfig)
	simulationRoutes.GET("/personas", runHandler.DefaultPersonas)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(authRoutes).
		Register(simulationRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop in-flight simulation runs before the deferred teardown
	simService.Shutdown(ctx)

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}

// shutdownWithTimeout runs a provider shutdown with a bounded context
func shutdownWithTimeout(fn func(context.Context) error, log *zap.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Telemetry shutdown failed", zap.String("component", name), zap.Error(err))
	}
}
