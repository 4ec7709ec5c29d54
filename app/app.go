// File: app/app.go
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smad-api/config"
	"smad-api/db"
	"smad-api/handler"
	"smad-api/logger"
	"smad-api/metrics"
	"smad-api/repository"
	"smad-api/router"
	"smad-api/service"
)

// App is the fully wired HTTP application.
type App struct {
	Router  http.Handler
	Auth    *service.AuthService
	Users   *service.UserService
	limiter *handler.RateLimiter
}

// New wires services, handlers and the router on top of a user repository.
func New(cfg *config.Config, users repository.IUserRepository) (*App, error) {
	hasher := service.NewPasswordHasher(cfg.Security.BcryptCost)

	authService, err := service.NewAuthService(cfg.JWT, users, hasher)
	if err != nil {
		return nil, err
	}
	userService := service.NewUserService(users, hasher)

	m := metrics.New()
	limiter := handler.NewRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst, cfg.RateLimit.TrustProxy)

	r := router.NewRouter(router.Deps{
		Auth:         handler.NewAuthHandler(authService, m),
		Users:        handler.NewUserHandler(userService),
		Verifier:     authService,
		Metrics:      m,
		LoginLimiter: limiter,
		CORSOrigins:  cfg.CORS.Origins,
		StaticDir:    cfg.Server.StaticDir,
	})

	return &App{Router: r, Auth: authService, Users: userService, limiter: limiter}, nil
}

// Close releases background resources owned by the app.
func (a *App) Close() {
	a.limiter.Stop()
}

func Run() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.Init(cfg.Log)
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	ctx := context.Background()

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	var users repository.IUserRepository = repository.NewUserRepository(database)
	if cfg.Redis.Enabled {
		rdb, err := db.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		users = repository.NewCachedUserRepository(users, rdb, cfg.Redis.UserTTL)
	}

	application, err := New(cfg, users)
	if err != nil {
		logger.Log.Fatalf("Error building application: %v", err)
	}
	defer application.Close()

	if err := application.Users.EnsureAdmin(ctx, cfg.Security.AdminLogin, cfg.Security.AdminPassword); err != nil {
		logger.Log.Fatalf("Error seeding admin user: %v", err)
	}

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
