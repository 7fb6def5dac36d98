package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/matheus3301/followtrack/internal/api"
	"github.com/matheus3301/followtrack/internal/bus"
	"github.com/matheus3301/followtrack/internal/cache"
	"github.com/matheus3301/followtrack/internal/config"
	"github.com/matheus3301/followtrack/internal/feed"
	"github.com/matheus3301/followtrack/internal/lock"
	"github.com/matheus3301/followtrack/internal/logging"
	"github.com/matheus3301/followtrack/internal/metrics"
	"github.com/matheus3301/followtrack/internal/profile"
	"github.com/matheus3301/followtrack/internal/source"
	"github.com/matheus3301/followtrack/internal/status"
	"github.com/matheus3301/followtrack/internal/store"
	intsync "github.com/matheus3301/followtrack/internal/sync"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	// Optional overrides for testing; empty uses the profile defaults.
	SocketPath       string
	HealthSocketPath string
	ConfigPath       string
}

func (p Params) socketPaths() (string, string) {
	sock, health := p.SocketPath, p.HealthSocketPath
	if sock == "" {
		sock = profile.SocketPath(p.Profile)
	}
	if health == "" {
		health = profile.HealthSocketPath(p.Profile)
	}
	return sock, health
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCache,
			provideMetrics,
			provideSource,
			provideSession,
			provideEngine,
			provideHealth,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// process that owns the profile.
func provideStore(lc fx.Lifecycle, p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	lc.Append(fx.StopHook(db.Close))
	return db, nil
}

func provideCache(lc fx.Lifecycle, p Params, cfg *config.Config, db *store.DB, logger *zap.Logger) (*cache.Cache, error) {
	var backend cache.Backend
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		backend = cache.NewSQLiteBackend(db)
	case config.BackendMemory:
		backend = cache.NewMemoryBackend()
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Reads degrade to absent and writes are retried on the next sync.
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		lc.Append(fx.StopHook(rdb.Close))
		backend = cache.NewRedisBackend(rdb, cfg.Cache.RedisTTL.Duration)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	ns := cfg.Cache.Namespace
	if ns == "" {
		ns = p.Profile
	}
	logger.Info("cache ready", zap.String("backend", cfg.Cache.Backend), zap.String("namespace", ns))
	return cache.New(backend, ns, logger.Named("cache")), nil
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideSource(cfg *config.Config) source.DataSource {
	return source.NewMock(source.MockOptions{
		Seed:      cfg.Source.Seed,
		Followers: cfg.Source.Followers,
		Following: cfg.Source.Following,
		Overlap:   cfg.Source.Overlap,
		Churn:     cfg.Source.Churn,
	})
}

func provideSession(p Params, cfg *config.Config, src source.DataSource, c *cache.Cache, db *store.DB, m *status.Machine, b *bus.Bus, mx *metrics.Metrics, logger *zap.Logger) *intsync.Session {
	return intsync.NewSession(intsync.Deps{
		Source:  src,
		Cache:   c,
		Runs:    db,
		Status:  m,
		Bus:     b,
		Metrics: mx,
		Logger:  logger.Named("sync"),
	}, intsync.Options{
		Profile: p.Profile,
		Limits: feed.Limits{
			NewFollowers:      cfg.Sync.MaxNewFollowers,
			Unfollows:         cfg.Sync.MaxUnfollowEvents,
			MutualConnections: cfg.Sync.MaxMutualConnections,
			Milestones:        cfg.Sync.Milestones,
		},
		MaxNotifications: cfg.Sync.MaxNotifications,
		UndoWindow:       cfg.Sync.UndoWindow.Duration,
	})
}

func provideEngine(cfg *config.Config, s *intsync.Session, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(s, cfg.Sync.Interval.Duration, logger.Named("engine"))
}

func provideHealth(m *status.Machine, b *bus.Bus) *Health {
	return NewHealth(m, b)
}

func provideHandler(p Params, s *intsync.Session, e *intsync.Engine, db *store.DB, mx *metrics.Metrics, logger *zap.Logger) http.Handler {
	return api.NewHandler(api.Deps{
		Profile: p.Profile,
		Session: s,
		Engine:  e,
		Runs:    db,
		Metrics: mx,
		Logger:  logger.Named("api"),
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, engine *intsync.Engine, health *Health, b *bus.Bus, logger *zap.Logger) {
	events := NewEventLog(b, logger.Named("events"))
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			events.Start()

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()

			// Loads the cache, then syncs in the background.
			engine.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			srv.Stop(ctx)
			health.Close()
			events.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
