package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"StockSentinel/internal/collector"
	"StockSentinel/internal/config"
	"StockSentinel/internal/gate"
	"StockSentinel/internal/kv"
	"StockSentinel/internal/notifier"
	"StockSentinel/internal/pipeline"
	"StockSentinel/internal/scheduler"
	"StockSentinel/internal/server"
	"StockSentinel/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] StockSentinel starting...")

	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init SQLite store
	st, err := store.New(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	// Init Redis state
	kvClient, err := kv.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("[FATAL] connect redis: %v", err)
	}
	defer kvClient.Close()

	// Init fetchers and collector
	primary := collector.NewStooqFetcher(cfg.Proxy)
	fallback := collector.NewYahooFetcher(cfg.Proxy)
	fundFetcher := collector.NewFundFetcher(cfg.Fund.BaseURL, cfg.Fund.Codes, cfg.Proxy)
	col := collector.NewCollector(primary, fallback, fundFetcher)
	log.Printf("[INFO] data sources: %s primary, %s fallback", primary.Name(), fallback.Name())

	// Init push notifier
	push := notifier.NewPushClient(cfg.Push.Token, cfg.Push.Recipient, cfg.Proxy)

	// Gate thresholds are read once at startup. Per-tick signal
	// thresholds refresh from Redis inside the pipeline.
	th, err := kvClient.Thresholds(ctx)
	if err != nil {
		log.Printf("[WARN] load thresholds: %v, using defaults", err)
	}
	g := gate.New(kvClient, push, st, th)

	// Init pipeline and scheduler
	p := pipeline.New(st, col, kvClient, kvClient, g, push)
	sched := scheduler.NewScheduler(ctx, p)
	if err := sched.Register(); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Init admin server
	srv := server.New(cfg.Server.Addr, st, col, kvClient, push, sched.RunNow)
	srv.Start()

	// Startup notice
	instruments, err := st.ActiveInstruments(ctx)
	if err != nil {
		log.Printf("[WARN] count instruments: %v", err)
	}
	if err := push.SendAlert(ctx, notifier.FormatStartup(len(instruments))); err != nil {
		log.Printf("[WARN] startup notice: %v", err)
	}

	// Optional: run immediately on start
	if cfg.RunOnStart {
		log.Println("[INFO] RUN_ON_START enabled, executing dispatch now")
		go sched.RunNow()
	}

	log.Println("[INFO] StockSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] admin server shutdown: %v", err)
	}
	if err := push.SendAlert(shutdownCtx, "StockSentinel shutting down"); err != nil {
		log.Printf("[WARN] shutdown notice: %v", err)
	}
	cancel()
	log.Println("[INFO] StockSentinel stopped")
}
