package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberbot/internal/artifact"
	"memberbot/internal/config"
	"memberbot/internal/db"
	"memberbot/internal/domain"
	apihttp "memberbot/internal/http"
	"memberbot/internal/line"
	"memberbot/internal/messaging"
	"memberbot/internal/metrics"
	"memberbot/internal/repository"
	"memberbot/internal/service"
	"memberbot/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	members, health, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	var (
		locker      service.MemberLocker
		dedup       service.EventDeduper
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process lock", zap.Error(err))
		} else {
			locker = service.NewRedisMemberLocker(redisClient, cfg.LockTTL, logger)
			dedup = service.NewRedisEventDeduper(redisClient, 24*time.Hour)
		}
		cancel()
		defer redisClient.Close()
	}
	if locker == nil {
		locker = service.NewMemoryMemberLocker()
	}
	if dedup == nil {
		dedup = service.NewMemoryEventDeduper(24 * time.Hour)
	}

	gateways := messaging.NewRegistry()
	var tgClient *telegram.Client
	if cfg.LINEChannelAccessToken != "" {
		lineClient, err := line.NewClient(
			cfg.LINEAPIBaseURL, cfg.LINEDataAPIBaseURL, cfg.LINEChannelAccessToken, cfg.CollaboratorTimeout, logger,
		)
		if err != nil {
			logger.Fatal("line client init", zap.Error(err))
		}
		gateways.Register(domain.PlatformLINE, lineClient)
	}
	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Fatal("telegram bot init", zap.Error(err))
		}
		if err := telegram.RegisterWebhook(bot, cfg.PublicBaseURL+"/webhook/telegram"); err != nil {
			logger.Warn("telegram webhook registration failed", zap.Error(err))
		}
		tgClient = telegram.NewClient(bot, cfg.CollaboratorTimeout, logger)
		gateways.Register(domain.PlatformTelegram, tgClient)
	}

	var (
		storage  artifact.Storage
		mediaDir string
	)
	if cfg.CloudinaryURL != "" {
		cld, err := artifact.NewCloudinaryStorage(cfg.CloudinaryURL)
		if err != nil {
			logger.Fatal("cloudinary init", zap.Error(err))
		}
		storage = cld
	} else {
		local, err := artifact.NewLocalStorage(cfg.MediaDir, cfg.PublicBaseURL)
		if err != nil {
			logger.Fatal("media dir init", zap.Error(err))
		}
		storage = local
		mediaDir = local.Dir()
		logger.Warn("cloudinary not configured, serving media from disk", zap.String("dir", mediaDir))
	}

	m := metrics.New()
	executor := service.NewEffectExecutor(members, gateways, artifact.NewQRGenerator(), storage, m, logger, service.ExecutorConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		QRSize:        cfg.QRSize,
		Timeout:       cfg.CollaboratorTimeout,
	})
	onboardingSvc := service.NewOnboardingService(logger, service.OnboardingDeps{
		Members: members,
		Machine: service.NewOnboardingMachine(service.MachineOptions{
			SkipPhotoStep:    cfg.SkipPhotoStep,
			SkipPhoneConfirm: cfg.SkipPhoneConfirm,
		}),
		Executor: executor,
		Locker:   locker,
		Dedup:    dedup,
		Gateways: gateways,
		Metrics:  m,
		Timeout:  cfg.CollaboratorTimeout,
	})

	sweeper := service.NewStaleSweeper(onboardingSvc, cfg.SweepInterval, cfg.StaleAfter, logger)
	go sweeper.Run(ctx)

	var scannerJWT *service.JWTService
	if cfg.ScannerJWTSecret != "" {
		scannerJWT = service.NewJWTService(cfg.ScannerJWTSecret, cfg.ScannerTokenTTL)
	} else {
		logger.Warn("scanner jwt secret not configured, member endpoint is public")
	}

	var acker apihttp.CallbackAcker
	if tgClient != nil {
		acker = tgClient
	}
	webhookHandler := apihttp.NewWebhookHandler(logger, onboardingSvc, acker)
	memberHandler := apihttp.NewMemberHandler(logger, members)
	router := apihttp.NewRouter(logger, webhookHandler, memberHandler, apihttp.RouterOptions{
		MediaDir:   mediaDir,
		Metrics:    m.Handler(),
		ScannerJWT: scannerJWT,
		Health:     health,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openStore abre el backend elegido por STORE_DRIVER y asegura el esquema.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.MemberRepository, func(context.Context) error, func()) {
	if cfg.StoreDriver == config.StoreDriverSQLite {
		gdb, err := db.NewSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite open", zap.Error(err))
		}
		repo := repository.NewGormMemberRepository(gdb)
		if err := repo.Migrate(); err != nil {
			logger.Fatal("sqlite migrate", zap.Error(err))
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			logger.Fatal("sqlite handle", zap.Error(err))
		}
		return repo, sqlDB.PingContext, func() { _ = sqlDB.Close() }
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}
	return repository.NewPgMemberRepository(pool), func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	}, pool.Close
}
