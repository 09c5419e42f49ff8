package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"

	"vidpipe/internal/config"
	"vidpipe/internal/daemon"
	"vidpipe/internal/jobs"
	"vidpipe/internal/queue"
	"vidpipe/internal/storage"
	"vidpipe/internal/testsupport"
	"vidpipe/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
}

func setupCLITestEnv(t *testing.T, mutate func(*config.Config)) *cliTestEnv {
	t.Helper()
	t.Setenv("VIDPIPE_API_TOKEN", "")
	t.Setenv("VIDPIPE_JWT_SECRET", "")
	t.Setenv("VIDPIPE_API_BIND", "")

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if mutate != nil {
		mutate(cfg)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
	}
}

// startDaemon runs a daemon against the env's database and returns its API
// base URL.
func (e *cliTestEnv) startDaemon(t *testing.T) string {
	t.Helper()
	buckets := storage.New(e.cfg)
	mgr := workflow.NewManager(e.cfg, e.store, buckets, nil)
	svc := jobs.NewService(e.cfg, e.store, buckets, nil, mgr)
	d, err := daemon.New(e.cfg, e.store, nil, mgr, svc, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	return "http://" + d.Addr()
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func runCLIJSON(t *testing.T, env *cliTestEnv, out any, args ...string) {
	t.Helper()
	stdout, err := runCLI(t, env, append([]string{"--json"}, args...)...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		t.Fatalf("decode %v output %q: %v", args, stdout, err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substring string) {
	t.Helper()
	if !strings.Contains(output, substring) {
		t.Fatalf("expected output to contain %q, got:\n%s", substring, output)
	}
}
