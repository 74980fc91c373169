package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"smartmoney/internal/client/polymarket/data"
	"smartmoney/internal/config"
	cronrunner "smartmoney/internal/cron"
	"smartmoney/internal/db"
	"smartmoney/internal/handler"
	"smartmoney/internal/logger"
	gormrepository "smartmoney/internal/repository/gorm"
	"smartmoney/internal/service"
)

func main() {
	cfgPath := os.Getenv("SM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	limiter := rate.NewLimiter(rate.Limit(cfg.DataAPI.RateLimitPerSec), cfg.DataAPI.RateBurst)
	dataHTTP := &http.Client{Timeout: cfg.DataAPI.Timeout}
	dataClient := data.NewClient(dataHTTP, cfg.DataAPI.BaseURL, limiter)

	walletSync := &service.WalletSyncService{
		Repo:           store,
		Fetcher:        dataClient,
		Logger:         logger,
		Workers:        cfg.PositionSync.Workers,
		WalletDeadline: cfg.PositionSync.WalletDeadline,
	}
	tradeSync := &service.TradeSyncService{
		Repo:      store,
		Fetcher:   dataClient,
		Logger:    logger,
		Workers:   cfg.TradeSync.Workers,
		BatchSize: cfg.TradeSync.BatchSize,
	}
	closedSync := &service.ClosedPositionSyncService{
		Repo:      store,
		Fetcher:   dataClient,
		Logger:    logger,
		Workers:   cfg.ClosedSync.Workers,
		BatchSize: cfg.ClosedSync.BatchSize,
	}
	valueRefresh := &service.ValueRefreshService{
		Repo:    store,
		Fetcher: dataClient,
		Logger:  logger,
		Workers: cfg.ValueRefresh.Workers,
	}
	discovery := &service.WalletDiscoveryService{
		Repo:       store,
		Fetcher:    dataClient,
		Logger:     logger,
		Categories: cfg.Discovery.Categories,
		MinPnl:     decimal.NewFromFloat(cfg.Discovery.MinPnl),
		MinVolume:  decimal.NewFromFloat(cfg.Discovery.MinVolume),
		PageLimit:  cfg.Discovery.PageLimit,
		MaxPages:   cfg.Discovery.MaxPages,
	}
	rollup := &service.PnlRollupService{
		Repo:       store,
		Logger:     logger,
		Workers:    cfg.PnlRollup.Workers,
		PeriodDays: cfg.PnlRollup.PeriodDays,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	walletHandler := &handler.WalletHandler{Repo: store}
	walletHandler.Register(engine)
	positionHandler := &handler.PositionHandler{Repo: store}
	positionHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Repo: store}
	marketHandler.Register(engine)
	syncHandler := &handler.SyncStateHandler{Repo: store}
	syncHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		register := func(name, spec string, enabled bool, job func(context.Context)) {
			if !enabled {
				logger.Info("cron job disabled", zap.String("job", name))
				return
			}
			if _, err := cronRunner.Add(spec, job); err != nil {
				logger.Warn("cron register failed",
					zap.String("job", name), zap.Error(err))
			}
		}
		register("position_sync", cfg.Cron.PositionSync, cfg.PositionSync.Enabled, walletSync.Run)
		register("trade_sync", cfg.Cron.TradeSync, cfg.TradeSync.Enabled, tradeSync.Run)
		register("closed_sync", cfg.Cron.ClosedSync, cfg.ClosedSync.Enabled, closedSync.Run)
		register("value_refresh", cfg.Cron.ValueRefresh, cfg.ValueRefresh.Enabled, valueRefresh.Run)
		register("discovery", cfg.Cron.Discovery, cfg.Discovery.Enabled, discovery.Run)
		register("pnl_rollup", cfg.Cron.PnlRollup, cfg.PnlRollup.Enabled, rollup.Run)
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
