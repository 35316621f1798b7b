// Package cli holds process-level helpers shared by the hostaudit commands.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostaudit/hostaudit/pkg/logging"
)

// SignalContext returns a child of parent cancelled on SIGINT/SIGTERM.
// If a second signal arrives during gracePeriod, os.Exit(1) is called.
//
// Usage:
//
//	ctx, cancel := cli.SignalContext(context.Background(), duration.ShutdownGrace, logger)
//	defer cancel()
func SignalContext(parent context.Context, gracePeriod time.Duration, logger *slog.Logger) (context.Context, context.CancelFunc) {
	return signalContextWithNotifier(parent, gracePeriod, logger, nil, nil)
}

// signalContextWithNotifier is the internal implementation for testing.
// sigChan, if non-nil, overrides the real signal channel.
// exitFn, if non-nil, overrides os.Exit.
func signalContextWithNotifier(
	parent context.Context,
	gracePeriod time.Duration,
	logger *slog.Logger,
	sigChan chan os.Signal,
	exitFn func(int),
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	logger = logging.OrDefault(logger)

	ownChannel := sigChan == nil
	if ownChannel {
		sigChan = make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}

	if exitFn == nil {
		exitFn = os.Exit
	}

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("signal received, shutting down gracefully",
				slog.String("signal", sig.String()),
				slog.Duration("grace", gracePeriod))
			cancel()

			// A second signal forces exit.
			select {
			case <-sigChan:
				logger.Error("second signal received, exiting")
				exitFn(1)
			case <-time.After(gracePeriod):
			}
		case <-ctx.Done():
		}
		if ownChannel {
			signal.Stop(sigChan)
		}
	}()

	return ctx, cancel
}
