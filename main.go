package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"

	"edgegate/internal/audit"
	"edgegate/internal/blacklist"
	"edgegate/internal/config"
	"edgegate/internal/gate"
	"edgegate/internal/handler"
	"edgegate/internal/middleware"
	"edgegate/internal/ratelimit"
	"edgegate/pkg/logger"
	"edgegate/pkg/redis"
)

// Resources holds everything that needs an orderly teardown.
type Resources struct {
	server     *http.Server
	redis      *goredis.Client
	sweeper    *ratelimit.Memory
	dispatcher *audit.Dispatcher
	log        *logger.Logger
	mu         sync.Mutex
	closed     bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Stop accepting new requests first.
	if r.server != nil {
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// Stop the bucket sweeper.
	if r.sweeper != nil {
		r.sweeper.Stop()
	}

	// Flush buffered audit events.
	if r.dispatcher != nil {
		r.dispatcher.Close()
		if dropped := r.dispatcher.Dropped(); dropped > 0 {
			r.log.WithField("dropped", dropped).Warn("Audit events were dropped under load")
		}
	}

	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errs = append(errs, fmt.Errorf("Redis close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"fail_mode":   cfg.FailMode,
	}).Info("Starting edgegate")

	// Store backends: Redis when configured, otherwise in-process.
	var (
		rdb       *goredis.Client
		blStore   blacklist.Store
		rlStore   ratelimit.Store
		memStore  *ratelimit.Memory
		seed      = cfg.BlacklistSeed
		bootstrap = context.Background()
	)
	if len(seed) == 0 {
		seed = blacklist.DefaultSeed
	}

	if cfg.RedisURL != "" {
		rdb, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		kb := redis.NewKeyBuilder(cfg.Environment)

		redisBl := blacklist.NewRedis(rdb, kb.KeyBlacklist())
		for _, ip := range seed {
			if err := redisBl.Add(bootstrap, ip); err != nil {
				log.WithError(err).WithField("ip", ip).Warn("Failed to seed blacklist entry")
			}
		}
		blStore = redisBl
		rlStore = ratelimit.NewRedis(rdb, kb.Prefix(), cfg.RateCapacity, cfg.RateRefillPerSec, cfg.RateIdleTTL)
	} else {
		blStore = blacklist.NewMemory(seed)
		memStore = ratelimit.NewMemory(cfg.RateCapacity, cfg.RateRefillPerSec,
			ratelimit.WithIdleTTL(cfg.RateIdleTTL),
			ratelimit.WithSweepInterval(cfg.RateSweepInterval),
		)
		memStore.Start()
		rlStore = memStore
	}

	// Audit pipeline: zap sink behind a non-blocking dispatcher.
	dispatcher := audit.NewDispatcher(audit.NewZapSink(log.Logger.Named("audit")), cfg.AuditBuffer)

	gateCfg := gate.DefaultConfig()
	gateCfg.SessionCookie = cfg.SessionCookie
	gateCfg.ReadCost = cfg.ReadCost
	gateCfg.WriteCost = cfg.WriteCost
	gateCfg.FailClosed = cfg.FailClosed()
	g := gate.New(gateCfg, blStore, rlStore, dispatcher, log)

	router := setupRouter(cfg, log, g, dispatcher, blStore, rlStore)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		server:     server,
		redis:      rdb,
		sweeper:    memStore,
		dispatcher: dispatcher,
		log:        log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}
}

// setupRouter configures and returns the HTTP router
func setupRouter(cfg *config.Config, log *logger.Logger, g *gate.Gate, sink audit.Sink, blStore blacklist.Store, rlStore ratelimit.Store) *chi.Mux {
	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins
	r.Use(middleware.CORS(corsConfig, log))

	// Everything below the CORS layer passes through the gate; the gate's
	// own config exempts health, static assets, and the challenge path.
	r.Use(middleware.Gate(g, log))

	healthHandler := handler.NewHealthHandler(log)
	ddosHandler := handler.NewDDoSHandler(rlStore, sink, log, cfg.ReadCost, cfg.WriteCost, cfg.FailClosed())
	blacklistHandler := handler.NewBlacklistHandler(blStore, sink, log, cfg.FailClosed())
	botHandler := handler.NewBotHandler(sink, log)
	challengeHandler := handler.NewChallengeHandler(sink, log)

	r.Get("/health", healthHandler.Check)
	r.Get("/status", healthHandler.Check)

	r.Get("/ddos-check", ddosHandler.Get)
	r.Post("/ddos-check", ddosHandler.Post)

	r.Get("/ip-blacklist-check", blacklistHandler.Check)
	r.Post("/ip-blacklist-check", blacklistHandler.Admin)

	r.Get("/bot-check", botHandler.Check)
	r.Post("/bot-check", botHandler.Verify)

	r.Get("/challenge", challengeHandler.Serve)

	return r
}
