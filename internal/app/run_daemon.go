package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/schedule"
)

type daemon struct {
	spec  schedule.CronSpec
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	run   func(ctx context.Context, cfg *config.Config, opts SyncOptions) error
}

// RunDaemon runs a sync each time cfg.Schedule fires until ctx is done. A
// failed or timed out run is logged and the daemon waits for the next tick.
func RunDaemon(ctx context.Context, cfg *config.Config, opts SyncOptions, runTimeout time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	expr := strings.TrimSpace(cfg.Schedule)
	if expr == "" {
		return fmt.Errorf("daemon: schedule is empty")
	}
	spec, err := schedule.ParseCronSpec(expr)
	if err != nil {
		return fmt.Errorf("daemon: invalid schedule %q: %w", expr, err)
	}

	d := &daemon{spec: spec, now: time.Now, sleep: sleepFor, run: RunSync}
	return d.loop(ctx, cfg, opts, runTimeout)
}

func (d *daemon) loop(ctx context.Context, cfg *config.Config, opts SyncOptions, runTimeout time.Duration) error {
	slog.Info("daemon started", "schedule", d.spec.String(), "folder", cfg.Folder)

	for {
		next := d.spec.Next(d.now())
		if next.IsZero() {
			return fmt.Errorf("daemon: schedule %q never fires", d.spec.String())
		}
		slog.Debug("daemon waiting", "next", next.Format(time.RFC3339))

		if !d.sleep(ctx, next.Sub(d.now())) {
			slog.Info("daemon: shutdown requested")
			return nil
		}

		runCtx := ctx
		cancel := func() {}
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		}

		runOpts := opts
		runOpts.Date = ""
		err := d.run(runCtx, cfg, runOpts)
		cancel()

		switch {
		case ctx.Err() != nil:
			slog.Info("daemon: shutdown requested")
			return nil
		case err != nil && runTimeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded):
			errutil.ReportError(err, "Daemon run timed out", "timeout", runTimeout, "at", next.Format(time.RFC3339))
		case err != nil:
			errutil.ReportError(err, "Daemon run failed", "at", next.Format(time.RFC3339))
		}
	}
}

// sleepFor reports false when ctx ends first.
func sleepFor(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
