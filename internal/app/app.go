package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yetuga/portal/internal/config"
	"github.com/yetuga/portal/internal/database"
	"github.com/yetuga/portal/internal/middleware"
	"github.com/yetuga/portal/internal/pkg/activity"
	"github.com/yetuga/portal/internal/pkg/bark"
	"github.com/yetuga/portal/internal/pkg/kv"
	"github.com/yetuga/portal/internal/pkg/metrics"
	"github.com/yetuga/portal/internal/pkg/ratelimit"
	pkgredis "github.com/yetuga/portal/internal/pkg/redis"
	"github.com/yetuga/portal/internal/pkg/session"
)

// activity rows kept in process when no database is configured
const memoryActivityLimit = 5000

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	logger  *zap.Logger
	clock   abtime.AbstractTime
	metrics *metrics.Metrics

	db    *gorm.DB
	redis *pkgredis.Client

	sessions *session.Manager
	limiter  *ratelimit.Limiter
	activity *activity.Recorder
	alerts   *bark.Service
}

// New wires the portal: config → DB → Redis → stores → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   abtime.NewRealTime(),
		metrics: metrics.New(),
	}

	if cfg.Database.Disabled {
		logger.Warn("database disabled, accounts and activity are kept in memory")
	} else {
		db, err := database.Connect(cfg, true)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.db = db
	}

	if cfg.Session.Backend == config.BackendRedis || cfg.RateLimit.Backend == config.BackendRedis {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rc
	}

	sessionStore, err := a.openStore(cfg.Session.Backend, "sessions")
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("session store: %w", err)
	}
	// A limiter backend that cannot be opened degrades to process memory.
	limitStore, err := a.openStore(cfg.RateLimit.Backend, "ratelimit")
	if err != nil {
		logger.Warn("rate limit store unavailable, keeping records in memory",
			zap.String("backend", cfg.RateLimit.Backend), zap.Error(err))
		limitStore = kv.NewMemoryStore(a.clock)
	}

	a.sessions = session.NewManager(session.Options{
		Store:            sessionStore,
		Clock:            a.clock,
		Logger:           logger.Named("session"),
		Lifetime:         cfg.Session.Lifetime(),
		RotationInterval: cfg.Session.RotationInterval(),
		CookieName:       cfg.Session.CookieName,
		SecureCookie:     cfg.Session.SecureCookie,
	})

	a.alerts = bark.New(bark.Config{
		Key:    cfg.Alerts.BarkKey,
		Server: cfg.Alerts.BarkServer,
	}, a.clock, logger.Named("bark"))
	a.limiter = ratelimit.New(limitStore, ratelimit.Options{
		Clock:   a.clock,
		Lockout: cfg.RateLimit.Lockout(),
		Logger:  logger.Named("ratelimit"),
		OnLockout: func(action, identity string, until time.Time) {
			a.metrics.ObserveLockout(action, identity, until)
			a.alerts.NotifyLockout(action, identity, until)
		},
	})

	var repo activity.Repository
	if a.db != nil {
		repo = activity.NewGormRepository(a.db)
	} else {
		repo = activity.NewMemoryRepository(memoryActivityLimit, a.clock)
	}
	a.activity = activity.NewRecorder(repo, logger.Named("activity"))

	if a.router, err = a.newRouter(); err != nil {
		a.Shutdown()
		return nil, err
	}
	a.registerRoutes()
	return a, nil
}

// openStore builds the kv backend named by backend. sub keeps sessions and
// limiter records apart.
func (a *App) openStore(backend, sub string) (kv.Store, error) {
	switch backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(a.clock), nil
	case config.BackendFile:
		return kv.NewFileStore(filepath.Join(a.cfg.StateDir(), sub), a.clock)
	case config.BackendRedis:
		return kv.NewRedisStore(a.redis, "yetuga:"+sub+":"), nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func (a *App) newRouter() (*gin.Engine, error) {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	// Limiter identities come from ClientIP, so forwarding headers are only
	// honoured from configured proxies.
	if err := router.SetTrustedProxies(a.cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.logger, a.metrics))
	router.Use(corsPolicy(a.cfg.AllowedOrigins, a.cfg.IsDev()))
	router.Use(middleware.Session(a.sessions, a.metrics, a.logger.Named("session")))
	return router, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown closes the database pool and the Redis client.
func (a *App) Shutdown() {
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}

func (a *App) pingDatabase(ctx context.Context) error { return database.Ping(ctx, a.db) }
