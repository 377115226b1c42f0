// Package main provides the entry point for the catalog daemon. It keeps the
// corpus snapshot and the recommendation index fresh and exposes metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/anineesan/anineesan-server/internal/config"
	"github.com/anineesan/anineesan-server/internal/di"
	"github.com/anineesan/anineesan-server/internal/logger"
	"github.com/anineesan/anineesan-server/internal/supervisor"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	injector := di.NewContainer(cfg)

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap daemon: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	tree := do.MustInvoke[*supervisor.Tree](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down daemon gracefully...")
		// Wait for the tree so no loop is still writing when the store closes.
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	stop()

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		log.Error("Supervisor tree stopped", "error", treeErr)
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		log.Warn("Services did not stop in time", "count", len(unstopped))
	}

	// The container closes the store and stops the rate limiter.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Daemon stopped")
}
