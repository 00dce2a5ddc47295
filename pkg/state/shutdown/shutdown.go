// Package shutdown handles process signals, ordered teardown and fatal aborts.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"p2pmessage/pkg/state/logger"
)

// Step is one named teardown action.
type Step struct {
	Name string
	Fn   func(context.Context) error
}

// Run executes steps in order. A failing step is logged and does not stop
// the ones after it; the joined errors are returned.
func Run(ctx context.Context, steps ...Step) error {
	logger.Info("shutdown_requested", "steps", len(steps))
	var errs []error
	for _, s := range steps {
		if s.Fn == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			logger.Error("shutdown_deadline_exceeded", "step", s.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			break
		}
		logger.Info("shutdown_step", "step", s.Name)
		if err := s.Fn(ctx); err != nil {
			logger.Error("shutdown_step_failed", "step", s.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	logger.Info("shutdown_complete", "failed", len(errs))
	return errors.Join(errs...)
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. On
// SIGPIPE it dumps goroutine stacks first.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)
	go func() {
		defer signal.Stop(sigc)
		select {
		case s := <-sigc:
			if s == syscall.SIGPIPE {
				logger.Info("signal_received", "signal", s.String(), "msg", "dumping goroutine stacks")
				logger.Info("goroutine_stack_dump", "dump", stacks())
			} else {
				logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func stacks() string {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return string(buf[:n])
}

// Abort logs a fatal startup error, writes a crash dump under dataDir and
// exits with status 2.
func Abort(contextMsg string, err error, dataDir string) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", contextMsg, err)
	path, derr := WriteCrashDump(dataDir, contextMsg, err)
	if derr != nil {
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		fmt.Fprintf(os.Stderr, "crash dump written: %s\n", path)
	}
	logger.Sync()
	os.Exit(2)
}

// WriteCrashDump writes reason, error and goroutine stacks to
// <dataDir>/state/crash/crash-<ts>.log and returns the path.
func WriteCrashDump(dataDir, reason string, cause error) (string, error) {
	dir := "crash"
	if dataDir != "" {
		dir = filepath.Join(dataDir, "state", "crash")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	now := time.Now().UTC()
	path := filepath.Join(dir, fmt.Sprintf("crash-%d.log", now.UnixNano()))
	body := fmt.Sprintf("time: %s\nreason: %s\nerror: %v\ncmd: %v\n\n%s",
		now.Format(time.RFC3339), reason, cause, os.Args, stacks())
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", fmt.Errorf("write crash dump: %w", err)
	}
	return path, nil
}
