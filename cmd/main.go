package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/account"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/bootstrap"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/config"
	cronpkg "github.com/ONE2ALLINFOTECH/ecomerce/internal/cron"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/handler"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/handler/api"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/health"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/notify"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/repository"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/router"
)

const version = "1.0.0"

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if !cfg.IsProduction() {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Deduper (Redis with in-memory fallback) ---
	redisClient := config.NewRedisClient(&cfg.Redis)
	deduper, dedupeErr := middleware.NewDeduper(context.Background(), redisClient, "ecomerce")
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Gateways ---
	gateways := payment.NewDefaultRegistry(
		cfg.Payment.Cashfree.Gateway(),
		cfg.Payment.Stripe.Gateway(cfg.Server.Env),
		logger,
	)

	// --- Reports ---
	var reporter checkout.Reporter = notify.NopReporter{}
	var telegram *notify.TelegramReporter
	if cfg.Notify.BotToken != "" && cfg.Notify.ChatID != 0 {
		tr, err := notify.NewTelegramReporter(notify.TelegramConfig{
			Token:  cfg.Notify.BotToken,
			ChatID: cfg.Notify.ChatID,
		}, logger)
		if err != nil {
			logger.Warn("Telegram reports disabled", zap.Error(err))
		} else {
			reporter, telegram = tr, tr
		}
	}

	// --- Services ---
	orderRepo := repository.NewOrderRepository(db)
	customerRepo := repository.NewCustomerRepository(db)

	checkoutSvc := checkout.NewService(orderRepo, gateways, deduper, reporter, checkout.Options{
		BaseURL:     cfg.Server.BaseURL,
		InflightTTL: cfg.Checkout.InflightTTL,
	}, logger)

	accountSvc := account.NewService(customerRepo, &account.LogDelivery{
		BaseURL:    cfg.Server.BaseURL,
		RevealLink: !cfg.IsProduction(),
		Logger:     logger,
	}, account.Options{
		Secret:    []byte(cfg.JWT.Secret),
		AccessTTL: cfg.JWT.Expiry,
		ResetTTL:  cfg.JWT.ResetTTL,
	}, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	var verifier handler.WebhookVerifier
	if sg, ok := gateways.Stripe(); ok {
		verifier = sg
	}

	router.Setup(e, router.Deps{
		Orders:    api.NewOrderHandler(checkoutSvc, cfg.IsProduction(), logger),
		Customers: api.NewCustomerHandler(accountSvc, orderRepo, logger),
		Gateways:  api.NewGatewayHandler(checkoutSvc, gateways, logger),
		Callbacks: handler.NewPaymentCallbackHandler(verifier, checkoutSvc, deduper, logger),
		Results:   handler.NewResultPageHandler(checkoutSvc, logger),
		Health:    health.NewRegistry(version, health.NewDBChecker(db), health.NewRedisChecker(redisClient)),
		Auth:      accountSvc,
		AdminKey:  cfg.Server.AdminAPIKey,
		Logger:    logger,
	})

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(checkoutSvc, cronpkg.Config{
		ExpireAfter: cfg.Checkout.PaymentExpireAfter,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start cron scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting checkout server", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if telegram != nil {
		telegram.Wait()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
