package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/schedule"
)

func TestDaemonRunsOnEachTickAndSurvivesFailures(t *testing.T) {
	spec, err := schedule.ParseCronSpec("0 6 * * *")
	if err != nil {
		t.Fatalf("ParseCronSpec: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	var waits []time.Duration
	var dates []string
	runs := 0

	d := &daemon{
		spec: spec,
		now:  func() time.Time { return clock },
		sleep: func(_ context.Context, dur time.Duration) bool {
			waits = append(waits, dur)
			clock = clock.Add(dur)
			return true
		},
		run: func(_ context.Context, _ *config.Config, opts SyncOptions) error {
			runs++
			dates = append(dates, opts.Date)
			if runs == 1 {
				return errors.New("store unavailable")
			}
			cancel()
			return nil
		},
	}

	if err := d.loop(ctx, &config.Config{Folder: "Newspapers"}, SyncOptions{Date: "20200101"}, 0); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
	if waits[0] != time.Hour || waits[1] != 24*time.Hour {
		t.Fatalf("unexpected waits: %v", waits)
	}
	for _, date := range dates {
		if date != "" {
			t.Fatalf("daemon runs must use the current date, got %q", date)
		}
	}
}

func TestDaemonStopsWhenContextEnds(t *testing.T) {
	spec, _ := schedule.ParseCronSpec("@daily")
	d := &daemon{
		spec:  spec,
		now:   time.Now,
		sleep: func(context.Context, time.Duration) bool { return false },
		run: func(context.Context, *config.Config, SyncOptions) error {
			t.Fatal("run must not be called")
			return nil
		},
	}
	if err := d.loop(context.Background(), &config.Config{}, SyncOptions{}, 0); err != nil {
		t.Fatalf("loop: %v", err)
	}
}

func TestRunDaemonRejectsEmptySchedule(t *testing.T) {
	cfg := &config.Config{
		Version: 1,
		Folder:  "Newspapers",
		Sources: []string{"nyt"},
		Store:   config.StoreConfig{Type: config.StoreLocal, Local: config.LocalConfig{Path: t.TempDir()}},
	}
	if err := RunDaemon(context.Background(), cfg, SyncOptions{}, 0); err == nil {
		t.Fatal("expected empty schedule error")
	}
}

func TestSleepForHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepFor(ctx, time.Hour) {
		t.Fatal("expected sleepFor to report cancellation")
	}
	if !sleepFor(context.Background(), 0) {
		t.Fatal("expected zero sleep to complete")
	}
}
