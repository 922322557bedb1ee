package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/activityladdr/laddr/internal/auth"
	"github.com/activityladdr/laddr/internal/config"
	"github.com/activityladdr/laddr/internal/crypto"
	"github.com/activityladdr/laddr/internal/database"
	"github.com/activityladdr/laddr/internal/geocode"
	"github.com/activityladdr/laddr/internal/handlers"
	"github.com/activityladdr/laddr/internal/health"
	"github.com/activityladdr/laddr/internal/ladder"
	"github.com/activityladdr/laddr/internal/metrics"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/regions"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/strava"
	"github.com/activityladdr/laddr/internal/streams"
	"github.com/activityladdr/laddr/internal/worker"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const geocodeCacheTTL = 30 * 24 * time.Hour

func main() {
	cfg := config.Load()
	slog.SetDefault(worker.NewLogger(cfg.LogLevel, cfg.LogFormat))

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database: %v", err)
	}
	defer database.Close(db)

	if cfg.EncryptionKey != "" {
		sealer, err := crypto.NewSealer(cfg.EncryptionKey)
		if err != nil {
			log.Fatalf("Invalid ENCRYPTION_KEY: %v", err)
		}
		db = models.WithTokenSealer(db, sealer)
	} else {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migrations: %v", err)
	}
	if !cfg.IsProduction() {
		if err := database.SeedDevData(db, time.Now()); err != nil {
			slog.Warn("Failed to seed dev data", "error", err)
		}
	}

	reg, err := regions.InitRegions(db, cfg.RegionsDir)
	if err != nil {
		log.Fatalf("Regions: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	st := store.New(db)
	publisher := streams.NewPublisherFromClient(rdb)

	geocoder := geocode.NewClient(cfg.OpenCageAPIKey, cfg.GeocodeStubMode, reg,
		geocode.WithCache(geocode.NewRedisCache(rdb, geocodeCacheTTL)))

	stravaClient := strava.NewClient(strava.Config{
		ClientID:          cfg.StravaClientID,
		ClientSecret:      cfg.StravaClientSecret,
		StubMode:          cfg.StravaStubMode,
		RequestsPerSecond: cfg.StravaRateLimit,
		Burst:             5,
	})

	lad := ladder.New(ladder.Deps{
		Store:     st,
		Regions:   reg,
		Geocoder:  geocoder,
		Fitness:   ladder.NewStravaSource(stravaClient, st, cfg.StravaStubMode),
		Publisher: publisher,
		Metrics:   metrics.Ladder(),
	}, ladder.Options{
		HorizonDays:   cfg.CalendarHorizonDays,
		CostCap:       cfg.SlotCostCap,
		BufferKm:      cfg.InteractionBufferKm,
		DefaultRegion: cfg.DefaultCity,
	})

	tasks, err := worker.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Worker client: %v", err)
	}
	defer tasks.Close()

	switch cfg.WorkerMode {
	case config.WorkerModeStandalone:
		stopBackground := startBackground(cfg, st, tasks)
		defer stopBackground()
		slog.Info("Running in standalone worker mode")
		if err := worker.Run(cfg, lad, tasks.EnqueueRefresh); err != nil {
			log.Fatalf("Worker: %v", err)
		}
		return

	case config.WorkerModeEmbedded:
		stopWorker, err := worker.Start(cfg, lad, tasks.EnqueueRefresh)
		if err != nil {
			log.Fatalf("Worker: %v", err)
		}
		defer stopWorker()
		stopBackground := startBackground(cfg, st, tasks)
		defer stopBackground()
	}

	serve(cfg, db, rdb, st, lad, publisher, tasks)
}

// startBackground starts the refresh scheduler and the webhook consumer. A
// failure of either is logged and leaves the rest of the process running.
func startBackground(cfg *config.Config, st *store.Store, tasks *worker.Client) func() {
	var stops []func()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		slog.Error("Scheduler not started", "error", err)
	} else {
		stops = append(stops, stopScheduler)
	}

	resolve := func(ctx context.Context, athleteID string) (uint, error) {
		user, err := st.UserByProviderID(ctx, models.ProviderStrava, athleteID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, streams.ErrUnknownAthlete
		}
		if err != nil {
			return 0, err
		}
		return user.ID, nil
	}
	stopConsumer, err := streams.StartWebhookConsumer(cfg.RedisURL, streams.HandleWebhookEvent(resolve, tasks.EnqueueRefresh))
	if err != nil {
		slog.Error("Webhook consumer not started", "error", err)
	} else {
		stops = append(stops, stopConsumer)
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

func serve(cfg *config.Config, db *gorm.DB, rdb *redis.Client, st *store.Store, lad *ladder.Ladder, publisher *streams.Publisher, tasks *worker.Client) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	auth.InitProviders(cfg)

	r := gin.New()
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("laddr_session", sessionStore))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.ReadyHandler(map[string]health.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/auth/strava", auth.HandleLogin)
	r.GET("/auth/strava/callback", auth.HandleCallback(st, cfg.AdminUsernames))
	r.GET("/logout", auth.HandleLogout)

	h := handlers.New(lad,
		handlers.WithRefreshQueue(tasks.EnqueueRefresh),
		handlers.WithWebhooks(publisher, cfg.StravaVerifyToken),
	)
	h.Register(r, auth.RequireAuth(), auth.RequireAdmin())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env, "worker_mode", cfg.WorkerMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
}
