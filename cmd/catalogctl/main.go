// Package main provides catalogctl, a command line client that runs catalog
// operations in-process against the configured upstreams and cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	domainerrors "github.com/anineesan/anineesan-server/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{}
	err := newRootCommand(cmdCtx).ExecuteContext(ctx)
	cmdCtx.close()
	if err != nil && !domainerrors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process status. Coded domain errors
// carry their own status; everything else is a generic failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if domainerrors.Is(err, context.Canceled) {
		return 130
	}
	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		return domainErr.Code.ExitCode()
	}
	return 1
}
