// Command steward runs the autonomous settlement caretaker. It observes the
// homestead API, buys affordable land and unlocks ready stages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/homestead/internal/steward"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("HOMESTEAD_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("HOMESTEAD_ADMIN_KEY")
	memoryPath := envOrDefault("STEWARD_MEMORY", "steward_memory.json")
	intervalSec := envIntOrDefault("STEWARD_INTERVAL", 60)

	if adminKey == "" {
		slog.Error("HOMESTEAD_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second
	slog.Info("homestead steward starting",
		"api_url", apiURL,
		"interval", interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Process start order is no guarantee of HTTP readiness.
	slog.Info("waiting for homestead API...")
	if err := steward.WaitForAPI(ctx, apiURL, 5*time.Minute); err != nil {
		slog.Error("API never became ready", "error", err)
		os.Exit(1)
	}

	st := steward.New(apiURL, adminKey, memoryPath)

	// Run first cycle immediately.
	runCycle(ctx, st)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, st)
		case <-ctx.Done():
			slog.Info("shutting down")
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, st *steward.Steward) {
	rec, err := st.RunCycle(ctx)
	if err != nil {
		slog.Error("steward cycle failed", "error", err)
		return
	}
	slog.Info("steward cycle complete", "tick", rec.Tick, "actions", rec.Actions)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}
