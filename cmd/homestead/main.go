// Command homestead runs the settlement simulation and its HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/homestead/internal/api"
	"github.com/talgya/homestead/internal/config"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults when empty)")
	importPath := flag.String("import", "", "seed the world from a snapshot file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	settings, err := cfg.Settings()
	if err != nil {
		slog.Error("invalid settings", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Create World State ───────────────────────────────────
	sim := loadSimulation(db, settings, *importPath)

	// Save fresh and imported worlds right away so a crash keeps them.
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("initial save failed", "error", err)
	}

	// ── Engine ───────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.FrameInterval.Std(), cfg.ProductionInterval.Std())
	eng.Tick = sim.CurrentTick()

	autosave := cfg.AutosaveTicks
	if autosave <= 0 {
		autosave = 1
	}
	eng.OnProduction = func(tick uint64) {
		sim.TickProduction(tick)
		if tick%uint64(autosave) == 0 {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("autosave failed", "tick", tick, "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("HOMESTEAD_ADMIN_KEY not set, POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:      sim,
		DB:       db,
		SavesDir: cfg.SavesDir,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
		Limiter:  api.NewRateLimiter(5, 20),
	}
	httpServer := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var parcels int
	sim.View(func(s *engine.Simulation) { parcels = len(s.World.Parcels) })
	fmt.Printf("\n%s is growing: %d parcel(s), tick %d.\n", sim.Name, parcels, eng.Tick)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. World state saved.")
}

// loadSimulation picks the starting world: an imported snapshot, then the
// saved database state, then a fresh game.
func loadSimulation(db *persistence.DB, settings engine.Settings, importPath string) *engine.Simulation {
	if importPath != "" {
		sim, err := persistence.ImportSnapshot(importPath, settings)
		if err == nil {
			slog.Info("world imported from snapshot", "path", importPath, "tick", sim.CurrentTick())
			return sim
		}
		slog.Warn("snapshot import failed, falling back", "error", err)
	}

	sim, err := db.LoadWorldState(settings)
	switch {
	case err == nil:
		return sim
	case errors.Is(err, persistence.ErrNoState):
		slog.Info("no saved state found, starting a new settlement")
	default:
		slog.Warn("saved state unusable, starting a new settlement", "error", err)
	}
	return engine.NewGame(settings)
}
