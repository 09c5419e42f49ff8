package daemon_test

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"vidpipe/internal/testsupport"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := f.daemon.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatal("expected daemon and workflow to report running")
	}
	if f.daemon.Addr() == "" {
		t.Fatal("expected api listener address")
	}

	if err := f.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := newDaemon(t, f.cfg, f.store)
	err := other.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	f.daemon.Stop()
	if status := f.daemon.Status(ctx); status.Running || status.Workflow.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected lock to be released, got %v", err)
	}
}

func TestDaemonRefusesMissingBucket(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	if err := os.RemoveAll(cfg.Paths.FontsDir); err != nil {
		t.Fatal(err)
	}
	err := d.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Fonts directory") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if d.Status(context.Background()).Running {
		t.Fatal("daemon must not run after preflight failure")
	}
}
