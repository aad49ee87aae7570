// Command novapad hosts the background worker substrate for the content
// acquisition, A/V capture, and audiobook pipelines (spec C1-C11) and the
// loopback status API the owning UI polls for progress. It owns no UI of
// its own (spec §1 Non-goal: no GUI behavior) — job submission is an
// external collaborator's responsibility.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/statusapi"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	addr := os.Getenv("NOVAPAD_STATUS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8090"
	}

	registry := statusapi.NewRegistry()
	srv := statusapi.NewServer(addr, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("status API failed to start", "error", err)
			cancel()
		}
	}()

	slog.Info("novapad worker substrate started", "status_addr", addr)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context canceled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("status API forced to shutdown", "error", err)
	} else {
		slog.Info("status API exited gracefully")
	}
}
