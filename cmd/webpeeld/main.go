package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webpeel/webpeel/api"
	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/humanize"
	"github.com/webpeel/webpeel/orchestrate"
	"github.com/webpeel/webpeel/tier"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("webpeel starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise cache + local intelligence ────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.FreshFor, cfg.Cache.StaleFor)
	defer cc.Stop()

	intel := orchestrate.NewLocalIntelligence(cc, cfg.Fetch.EnableRace, cfg.Fetch.RaceTimeout)

	// ── 4. Initialise fetch tiers (launches browser) ────────────────
	direct := tier.NewDirectClient()

	humanCfg := humanize.Config{
		TypingSpeedMin: cfg.Human.TypingSpeedMin,
		TypingSpeedMax: cfg.Human.TypingSpeedMax,
		TypoChance:     cfg.Human.TypoChance,
		MoveSpeed:      cfg.Human.MoveSpeed,
		ThinkTimeMin:   cfg.Human.ThinkTimeMin,
		ThinkTimeMax:   cfg.Human.ThinkTimeMax,
	}

	browser, err := tier.NewBrowser(cfg.Browser, humanCfg)
	if err != nil {
		slog.Error("failed to initialise browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	// ── 5. Initialise orchestrator ──────────────────────────────────
	o := orchestrate.New(direct, browser, intel, cfg.Fetch)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(o, browser, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() runs via defer — drains the page pool and kills Chrome.
	slog.Info("webpeel stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
