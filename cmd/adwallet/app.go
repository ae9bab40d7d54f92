package main

import (
	"context"
	"fmt"
	"time"

	"adwallet/config"
	"adwallet/internal/adapter/adplatform"
	"adwallet/internal/adapter/notify/email"
	"adwallet/internal/adapter/notify/telegram"
	chStorage "adwallet/internal/adapter/storage/clickhouse"
	"adwallet/internal/adapter/storage/memory"
	pgStorage "adwallet/internal/adapter/storage/postgres"
	redisStorage "adwallet/internal/adapter/storage/redis"
	"adwallet/internal/core/ports"
	"adwallet/internal/service"
	"adwallet/pkg/logger"

	"github.com/rs/zerolog"
)

const memorySweepInterval = time.Minute

// app is the wired dependency graph shared by the serve and guard commands.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	walletSvc  *service.WalletServiceImpl
	guard      *service.BudgetGuardImpl
	tokenSvc   *service.JWTTokenService
	sigSvc     *service.HMACSignatureService
	auditSvc   *service.AuditServiceImpl
	nonceStore ports.NonceStore
	rateLimits ports.RateLimitStore
	idemCache  ports.IdempotencyCache
	health     []ports.HealthChecker

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Pretty), nil
}

func buildApp(ctx context.Context) (_ *app, err error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.health = append(a.health, pgStorage.NewHealthCheck(pool))

	var suppression ports.SuppressionStore
	switch cfg.Notify.Backend {
	case "memory":
		mem := memory.NewSuppressionStore(memorySweepInterval)
		a.closers = append(a.closers, mem.Close)
		suppression = mem
		a.nonceStore = memory.NewNonceStore(mem)
		log.Warn().Msg("in-memory suppression store: dedupe state is lost on restart, rate limiting and Idempotency-Key replay are disabled")
	default:
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		suppression = redisStorage.NewSuppressionStore(rdb)
		a.nonceStore = redisStorage.NewNonceStore(rdb)
		a.rateLimits = redisStorage.NewRateLimitStore(rdb)
		a.idemCache = redisStorage.NewIdempotencyCache(rdb)
		a.health = append(a.health, redisStorage.NewHealthCheck(rdb))
	}

	chDB, err := chStorage.NewConnection(cfg.ClickHouse, log)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	a.closers = append(a.closers, func() { _ = chDB.Close() })
	a.health = append(a.health, chStorage.NewHealthCheck(chDB))

	controller := adplatform.NewCampaignController(cfg.Kafka, log)
	a.closers = append(a.closers, func() {
		if err := controller.Close(); err != nil {
			log.Warn().Err(err).Msg("closing campaign command writer")
		}
	})

	var tg ports.MessageSender
	if cfg.Telegram.BotToken != "" {
		s, err := telegram.NewSender(cfg.Telegram.BotToken, cfg.Notify.SendTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("telegram sender: %w", err)
		}
		tg = s
	}
	var mail ports.EmailSender
	if cfg.Email.APIURL != "" {
		mail = email.NewSender(cfg.Email, log)
	}
	if tg == nil && mail == nil {
		log.Warn().Msg("no notification channel configured, breach alerts will be skipped")
	}

	notifier, err := service.NewNotificationService(suppression, tg, mail, cfg.Notify, log)
	if err != nil {
		return nil, err
	}

	a.walletSvc = service.NewWalletService(
		pgStorage.NewWalletRepo(pool),
		pgStorage.NewTransactionRepo(pool),
		pgStorage.NewSubscriptionRepo(pool),
		pgStorage.NewTransactor(pool),
		service.NewArgon2HashService(),
		cfg.Wallet,
		log,
	)

	a.guard, err = service.NewBudgetGuard(
		pgStorage.NewAccountRepo(pool),
		pgStorage.NewCampaignRepo(pool),
		chStorage.NewSpendRepo(chDB),
		controller,
		notifier,
		a.walletSvc,
		cfg.Guard,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("budget guard: %w", err)
	}

	a.tokenSvc = service.NewJWTTokenService(cfg.JWT)
	a.sigSvc = service.NewHMACSignatureService()
	a.auditSvc = service.NewAuditService(pgStorage.NewAuditRepo(pool), log)

	return a, nil
}
