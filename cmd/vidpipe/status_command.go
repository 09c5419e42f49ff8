package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"vidpipe/internal/api"
	"vidpipe/internal/config"
	"vidpipe/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			status, daemonErr := fetchDaemonStatus(cmd, ctx, cfg)
			if status == nil {
				status, err = localStatus(cmd, ctx)
				if err != nil {
					return err
				}
			}

			if ctx.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), status)
			}
			renderStatus(cmd.OutOrStdout(), status, daemonErr)
			return nil
		},
	}
}

func fetchDaemonStatus(cmd *cobra.Command, ctx *commandContext, cfg *config.Config) (*api.DaemonStatus, error) {
	baseURL, err := ctx.apiBaseURL()
	if err != nil {
		return nil, err
	}
	client, err := newDaemonClient(cfg, baseURL)
	if err != nil {
		return nil, err
	}
	return client.Status(cmd.Context())
}

// localStatus reports queue counts straight from the database when the
// daemon cannot be reached.
func localStatus(cmd *cobra.Command, ctx *commandContext) (*api.DaemonStatus, error) {
	status := &api.DaemonStatus{}
	err := ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		counts := make(map[string]int, len(queue.AllStatuses()))
		for _, s := range queue.AllStatuses() {
			counts[string(s)] = stats[s]
		}
		status.QueueDBPath = store.Path()
		status.LockFilePath = cfg.LockPath()
		status.Workflow.QueueStats = counts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func renderStatus(out io.Writer, status *api.DaemonStatus, daemonErr error) {
	rep := newReport(out)
	rep.section("Daemon")

	switch {
	case status.Running:
		rep.item("Daemon", healthOK, "running (pid "+strconv.Itoa(status.PID)+")")
	case daemonErr != nil:
		rep.item("Daemon", healthWarn, "unreachable: "+daemonErr.Error())
	default:
		rep.item("Daemon", healthWarn, "not running")
	}
	rep.item("Queue database", healthInfo, status.QueueDBPath)

	if status.Running {
		wf := status.Workflow
		h := healthOK
		if !wf.Running {
			h = healthWarn
		}
		rep.item("Workflow", h,
			fmt.Sprintf("running=%s workers=%d queued=%d in-flight=%d", yesNo(wf.Running), wf.Workers, wf.QueueDepth, len(wf.InFlight)))
		if wf.LastError != "" {
			rep.item("Last error", healthError, wf.LastError)
		}
	}

	if len(status.Dependencies) > 0 {
		rep.section("Dependencies")
		for _, dep := range status.Dependencies {
			h, msg := healthOK, dep.Version
			switch {
			case !dep.Available && dep.Optional:
				h, msg = healthWarn, dep.Detail
			case !dep.Available:
				h, msg = healthError, dep.Detail
			}
			rep.item(dep.Name, h, msg)
		}
	}

	if len(status.Preflight) > 0 {
		rep.section("Preflight")
		for _, check := range status.Preflight {
			h := healthOK
			if !check.Passed {
				h = healthError
			}
			rep.item(check.Name, h, check.Detail)
		}
	}

	_, _ = rep.WriteTo(out)

	stats := status.Workflow.QueueStats
	rows := make([][]string, 0, len(stats))
	for _, key := range api.SortedStats(stats) {
		rows = append(rows, []string{key, strconv.Itoa(stats[key])})
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
}
