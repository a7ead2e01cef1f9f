// Command relay runs the AirChainPay multi-chain meta-transaction relay:
// it wires config, storage, the blockchain manager, the resilience layer,
// monitoring, the transaction processor, and the HTTP surface together and
// serves until an interrupt signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/airchainpay/relay/internal/blockchain"
	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/httpapi"
	"github.com/airchainpay/relay/internal/monitoring"
	"github.com/airchainpay/relay/internal/processor"
	"github.com/airchainpay/relay/internal/ratelimit"
	"github.com/airchainpay/relay/internal/resilience"
	"github.com/airchainpay/relay/internal/storage"
	"github.com/airchainpay/relay/internal/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relay: "+err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfgManager := config.NewManager(cfg)

	log, err := newLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting relay",
		zap.String("environment", string(cfg.Environment)),
		zap.Int("port", cfg.Port),
		zap.Int("supported_chains", len(cfg.SupportedChains)))

	// Control flow, leaves first (§2): config -> storage -> error handler
	// -> blockchain manager -> monitoring -> processor -> ingress.
	store, err := storage.NewFileStore(envString("DATA_DIR", "./data"))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close() //nolint:errcheck

	breakerRegistry := resilience.NewRegistry(resilience.DefaultPathConfigs())
	resilienceHandler := resilience.NewHandler(breakerRegistry, envInt("ERROR_RING_SIZE", 10000), log)

	operator, err := blockchain.NewOperator(os.Getenv("OPERATOR_PRIVATE_KEY"))
	if err != nil {
		return fmt.Errorf("load operator key: %w", err)
	}

	chainManager, err := blockchain.NewManager(cfg, resilienceHandler, operator, log)
	if err != nil {
		return fmt.Errorf("build blockchain manager: %w", err)
	}

	monitor := monitoring.NewRegistry()

	limiter := ratelimit.New(cfg.RateLimits.MaxRequests, time.Duration(cfg.RateLimits.WindowMS)*time.Millisecond)
	txValidator := validator.New(cfgManager, limiter)

	procCfg := processor.Config{
		MaxConcurrentWorkers:  cfg.MaxConcurrentWorkers,
		MaxQueueSize:          cfg.MaxQueueSize,
		DefaultRetryCount:     cfg.DefaultRetryCount,
		DefaultRetryDelay:     time.Duration(cfg.DefaultRetryDelayMS) * time.Millisecond,
		MaxRetryDelay:         time.Duration(cfg.MaxRetryDelayMS) * time.Millisecond,
		TransactionTimeout:    time.Duration(cfg.TransactionTimeoutMS) * time.Millisecond,
		UseExponentialBackoff: true,
	}
	proc := processor.New(procCfg, chainManager, store, log)

	srv := httpapi.NewServer(cfgManager, store, proc, chainManager, monitor, resilienceHandler, limiter, txValidator, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	procDone := make(chan error, 1)
	go func() { procDone <- proc.Run(ctx) }()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpDone := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpDone <- err
			return
		}
		httpDone <- nil
	}()

	log.Info("relay listening", zap.String("addr", httpServer.Addr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-httpDone:
		if err != nil {
			log.Error("http server exited", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}

	stop()
	<-procDone

	log.Info("relay stopped")
	return nil
}

func newLogger(env config.Environment) (*zap.Logger, error) {
	if env == config.EnvProduction || env == config.EnvStaging {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
