package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gymaccess/access-panel/internal/audio"
	"github.com/gymaccess/access-panel/internal/config"
	"github.com/gymaccess/access-panel/internal/device"
	"github.com/gymaccess/access-panel/internal/handler"
	"github.com/gymaccess/access-panel/internal/infra/postgresql"
	"github.com/gymaccess/access-panel/internal/infra/postgresql/migrations"
	infraredis "github.com/gymaccess/access-panel/internal/infra/redis"
	"github.com/gymaccess/access-panel/internal/ingest"
	"github.com/gymaccess/access-panel/internal/observability"
	"github.com/gymaccess/access-panel/internal/repository"
	"github.com/gymaccess/access-panel/internal/service"
	audiosignal "github.com/gymaccess/access-panel/internal/signal"
	"github.com/gymaccess/access-panel/internal/speech"
	"github.com/gymaccess/access-panel/internal/store"
	"github.com/gymaccess/access-panel/internal/toast"
	"github.com/gymaccess/access-panel/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	// Audio duck/restore is broadcast to sibling panel processes when a
	// broker is configured; a single-panel install runs without one.
	var broadcaster audio.Broadcaster = audio.NopBroadcaster{}
	if cfg.RabbitMQURL != "" {
		mq, err := audiosignal.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq initialization failed", zap.Error(err))
		}
		defer mq.Close()
		broadcaster = audiosignal.NewRabbitMQBroadcaster(mq)
	}
	ducker := audio.NewDucker(audio.DefaultDuckLevel, broadcaster, logger)

	var engine speech.Engine = speech.NopEngine{}
	if cfg.TTSURL != "" {
		httpEngine, err := speech.NewHTTPEngine(cfg.TTSURL)
		if err != nil {
			logger.Fatal("tts engine initialization failed", zap.Error(err))
		}
		engine = httpEngine
	}
	announcer := speech.NewAnnouncer(engine, ducker, logger)
	announcer.SetMetrics(metrics)
	defer announcer.Stop()

	presenter := toast.NewPresenter(time.Duration(cfg.ToastTTLSec)*time.Second, announcer, logger)
	presenter.SetMetrics(metrics)

	notifications := store.New(logger)

	attendance, err := service.NewAttendanceService(repository.NewGormAttendanceRepo(db), logger)
	if err != nil {
		logger.Fatal("attendance service initialization failed", zap.Error(err))
	}
	attendance.SetMetrics(metrics)

	channel, err := ingest.NewChannel(
		cfg.PushChannelURL,
		time.Duration(cfg.ReconnectDelaySec)*time.Second,
		[]ingest.Sink{notifications, presenter, attendance},
		logger,
	)
	if err != nil {
		logger.Fatal("push channel initialization failed", zap.Error(err))
	}
	channel.SetMetrics(metrics)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.DoorRateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	commander, err := device.NewCommander(cfg.DeviceCommandURL, limiter, logger)
	if err != nil {
		logger.Fatal("device commander initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterPanelRoutes(app, notifications, presenter); err != nil {
		logger.Fatal("failed to register panel routes", zap.Error(err))
	}
	if err := handler.RegisterAttendanceRoutes(app, attendance); err != nil {
		logger.Fatal("failed to register attendance routes", zap.Error(err))
	}
	if err := handler.RegisterDeviceRoutes(app, commander, metrics); err != nil {
		logger.Fatal("failed to register device routes", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb, func() ingest.State { return channel.State() })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return channel.Run(groupCtx)
	})
	g.Go(func() error {
		return presenter.Run(groupCtx)
	})
	g.Go(func() error {
		return attendance.Run(groupCtx)
	})
	g.Go(func() error {
		logger.Info("access panel api started", zap.Int("port", cfg.APIPort))
		return app.Listen(":" + strconv.Itoa(cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("access panel stopped with error", zap.Error(err))
	}

	logger.Info("access panel stopped")
}
