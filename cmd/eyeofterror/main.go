// Command eyeofterror is the plan-driven orchestrator of the home federation:
// it plans inbound messages with a small controller model and executes the
// resulting tool/model DAG against the worker endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shushunyam/eyeofterror/internal/config"
	"github.com/shushunyam/eyeofterror/internal/controller"
	"github.com/shushunyam/eyeofterror/internal/executor"
	"github.com/shushunyam/eyeofterror/internal/health"
	"github.com/shushunyam/eyeofterror/internal/httpx"
	"github.com/shushunyam/eyeofterror/internal/models"
	"github.com/shushunyam/eyeofterror/internal/observe"
	"github.com/shushunyam/eyeofterror/internal/orchestrator"
	"github.com/shushunyam/eyeofterror/internal/server"
	"github.com/shushunyam/eyeofterror/internal/tools"
)

// shutdownGrace bounds the drain of in-flight requests on SIGINT/SIGTERM.
const shutdownGrace = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eyeofterror: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("eyeofterror starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr(),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "eyeofterror",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Component wiring ──────────────────────────────────────────────────────
	pool := httpx.NewPool()
	registry := tools.New(cfg.Tools, pool)
	router := models.New(cfg, pool.Short)
	ctrl := controller.New(cfg.Controller, pool.Short, metrics)
	exec := executor.New(registry, router, metrics)
	orch := orchestrator.New(ctrl, exec)

	probes := health.New(
		health.Checker{Name: "controller", Check: controllerCheck(cfg)},
		health.Checker{Name: "routes", Check: routesCheck(cfg)},
	)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           server.New(orch, ctrl, probes, metrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	// ── Serve ─────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// controllerCheck reports whether planning is possible: either a controller
// base is configured or the fallback planner is forced.
func controllerCheck(cfg *config.Config) func(context.Context) error {
	return func(context.Context) error {
		if cfg.Controller.Disabled {
			return nil
		}
		if cfg.Controller.Base == "" {
			return errors.New("controller base not configured")
		}
		return nil
	}
}

// routesCheck reports whether at least one worker route is configured.
func routesCheck(cfg *config.Config) func(context.Context) error {
	return func(context.Context) error {
		if len(cfg.Routes) == 0 {
			return errors.New("no worker routes configured")
		}
		return nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║        EyeOfTerror — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════════╣")
	ctrlValue := cfg.Controller.Base + " / " + cfg.Controller.Model
	if cfg.Controller.Disabled {
		ctrlValue = "(fallback planner)"
	}
	printEntry("Controller", ctrlValue)
	for _, name := range []string{"7b", "20b", "70b"} {
		if e, ok := cfg.Routes[name]; ok {
			printEntry("Route "+name, e.Base+" / "+e.Model)
		}
	}
	printEntry("WarpWails", cfg.Tools.WarpWailsURL)
	printEntry("STT", cfg.Tools.STTBase)
	printEntry("Speaker", cfg.Tools.DefaultSpeaker)
	printEntry("Listen addr", cfg.Server.ListenAddr())
	fmt.Println("╚═══════════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 25 {
		value = value[:22] + "…"
	}
	fmt.Printf("║  %-12s : %-25s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
