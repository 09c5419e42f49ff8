package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidpipe/internal/testsupport"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	pidPath := filepath.Join(cfg.Paths.DataDir, "vidpiped.pid")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon did not write its pid file")
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err=%v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "vidpipe.log")); err != nil {
		t.Fatalf("expected current log pointer: %v", err)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() { first <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(cfg.LockPath()); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	second := *cfg
	second.API.Bind = "127.0.0.1:0"
	if err := Run(ctx, &second, Options{LogLevel: "error"}); err == nil {
		t.Fatal("expected second daemon to fail on the lock")
	}
	cancel()
	<-first
}
