package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vidpipe/internal/api"
	"vidpipe/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsFailStaleCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *jobs.Service) error {
				list, err := svc.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				views := api.FromJobs(list)
				if ctx.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), api.JobListResponse{Jobs: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, job := range views {
					rows = append(rows, jobRow(job))
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Status", "Video", "Created", "Output"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("job", args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *jobs.Service) error {
				job, err := svc.GetJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromJob(job)
				if ctx.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), api.JobResponse{Job: view})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeyValues(jobDetails(view)))
				return nil
			})
		},
	}
}

func newJobsFailStaleCommand(ctx *commandContext) *cobra.Command {
	var (
		olderThan time.Duration
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "fail-stale",
		Short: "Mark jobs stuck in processing as failed",
		Long: "Marks jobs that have been processing for longer than --older-than as failed.\n" +
			"Use this after a daemon crash; jobs are never re-run automatically.\n" +
			"Refuses to run while a daemon holds the lock unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			if !force {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				lock := flock.New(cfg.LockPath())
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("check daemon lock: %w", err)
				}
				if !ok {
					return fmt.Errorf("daemon is running (lock held at %s); its in-flight jobs would be failed, stop it or pass --force", cfg.LockPath())
				}
				defer func() { _ = lock.Unlock() }()
			}
			return ctx.withService(func(svc *jobs.Service) error {
				n, err := svc.FailStale(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), map[string]int64{"failed": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d stale job(s) as failed\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Minimum time since the job's last update")
	cmd.Flags().BoolVar(&force, "force", false, "Fail stale jobs even while a daemon is running")
	return cmd
}

func jobRow(job api.Job) []string {
	return []string{
		strconv.FormatInt(job.ID, 10),
		job.JobType,
		job.Status,
		optionalIDString(job.VideoID),
		job.CreatedAt,
		job.OutputFile,
	}
}

func jobDetails(job api.Job) [][2]string {
	pairs := [][2]string{
		{"ID", strconv.FormatInt(job.ID, 10)},
		{"Type", job.JobType},
		{"Status", job.Status},
		{"Video", optionalIDString(job.VideoID)},
		{"Created", job.CreatedAt},
		{"Updated", job.UpdatedAt},
	}
	if job.CompletedAt != "" {
		pairs = append(pairs, [2]string{"Completed", job.CompletedAt})
	}
	if job.StartTime != nil && job.EndTime != nil {
		pairs = append(pairs, [2]string{"Window", formatSeconds(*job.StartTime) + " - " + formatSeconds(*job.EndTime)})
	}
	if job.OverlayID != nil {
		pairs = append(pairs, [2]string{"Overlay", strconv.FormatInt(*job.OverlayID, 10)})
	}
	if job.Quality != "" {
		pairs = append(pairs, [2]string{"Quality", job.Quality})
	}
	if job.OutputFile != "" {
		pairs = append(pairs, [2]string{"Output", job.OutputFile})
	}
	if job.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", job.ErrorMessage})
	}
	return pairs
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func optionalIDString(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "s"
}
