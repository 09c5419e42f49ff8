package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"vidpipe/internal/api"
	"vidpipe/internal/jobs"
	"vidpipe/internal/queue"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video and queue its probe job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open upload: %w", err)
			}
			defer file.Close()

			return ctx.withService(func(svc *jobs.Service) error {
				job, err := svc.SubmitUpload(cmd.Context(), filepath.Base(args[0]), file)
				if err != nil {
					return err
				}
				return printQueued(cmd, ctx, job)
			})
		},
	}
}

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var start, end float64

	cmd := &cobra.Command{
		Use:   "trim <video-id>",
		Short: "Queue a trim of [start, end) seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := parseID("video", args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *jobs.Service) error {
				job, err := svc.SubmitTrim(cmd.Context(), videoID, start, end)
				if err != nil {
					return err
				}
				return printQueued(cmd, ctx, job)
			})
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End time in seconds")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newOverlayCommand(ctx *commandContext) *cobra.Command {
	var spec jobs.OverlaySpec
	var mediaPath string

	cmd := &cobra.Command{
		Use:   "overlay <video-id>",
		Short: "Queue a text or media overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := parseID("video", args[0])
			if err != nil {
				return err
			}

			var media io.Reader
			if mediaPath != "" {
				file, err := os.Open(mediaPath)
				if err != nil {
					return fmt.Errorf("open overlay media: %w", err)
				}
				defer file.Close()
				media = file
				spec.MediaFilename = filepath.Base(mediaPath)
			}

			return ctx.withService(func(svc *jobs.Service) error {
				job, err := svc.SubmitOverlay(cmd.Context(), videoID, spec, media)
				if err != nil {
					return err
				}
				return printQueued(cmd, ctx, job)
			})
		},
	}

	cmd.Flags().StringVar(&spec.Type, "type", "text", "Overlay type: text, image, video, or watermark")
	cmd.Flags().StringVar(&spec.Position, "position", string(queue.PositionTopLeft), "Anchor: top-left, top-right, bottom-left, bottom-right, or center")
	cmd.Flags().Float64Var(&spec.StartTime, "start", 0, "Start of the visibility window in seconds")
	cmd.Flags().Float64Var(&spec.EndTime, "end", 0, "End of the visibility window in seconds")
	cmd.Flags().StringVar(&spec.Text, "text", "", "Text content for text overlays")
	cmd.Flags().StringVar(&spec.FontName, "font", "", "Font file name in the fonts directory")
	cmd.Flags().StringVar(&mediaPath, "file", "", "Image or video file for media overlays")
	_ = cmd.MarkFlagRequired("end")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:   "export <video-id>",
		Short: "Queue a quality export (1080p, 720p, 480p)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := parseID("video", args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *jobs.Service) error {
				job, err := svc.SubmitQualityExport(cmd.Context(), videoID, quality)
				if err != nil {
					return err
				}
				return printQueued(cmd, ctx, job)
			})
		},
	}

	cmd.Flags().StringVar(&quality, "quality", "", "Target quality")
	_ = cmd.MarkFlagRequired("quality")
	return cmd
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect videos and their derivatives",
	}
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosDerivativesCommand(ctx))
	return videosCmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show video metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("video", args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *jobs.Service) error {
				video, err := svc.GetVideo(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromVideo(video)
				if ctx.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), api.VideoResponse{Video: view})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderKeyValues([][2]string{
					{"ID", strconv.FormatInt(view.ID, 10)},
					{"Filename", view.Filename},
					{"Size", strconv.FormatInt(view.Size, 10)},
					{"Duration", formatSeconds(view.Duration)},
					{"Uploaded", view.UploadTime},
					{"Derived from", optionalIDString(view.OriginalVideoID)},
				}))
				return nil
			})
		},
	}
}

func newVideosDerivativesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "derivatives <video-id>",
		Short: "List videos and quality versions produced from a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("video", args[0])
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *jobs.Service) error {
				derivatives, err := svc.ListDerivatives(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.FromDerivatives(id, derivatives)
				if ctx.jsonOutput() {
					return printJSON(cmd.OutOrStdout(), view)
				}
				out := cmd.OutOrStdout()
				if len(view.Videos) == 0 && len(view.Versions) == 0 {
					fmt.Fprintf(out, "Video %d has no derivatives\n", id)
					return nil
				}
				rows := make([][]string, 0, len(view.Videos)+len(view.Versions))
				for _, v := range view.Videos {
					rows = append(rows, []string{"video", strconv.FormatInt(v.ID, 10), v.Filename, formatSeconds(v.Duration)})
				}
				for _, v := range view.Versions {
					rows = append(rows, []string{"version", strconv.FormatInt(v.ID, 10), v.FilePath, v.Quality})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Kind", "ID", "File", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func printQueued(cmd *cobra.Command, ctx *commandContext, job *queue.Job) error {
	view := api.FromJob(job)
	if ctx.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), api.JobResponse{Job: view})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %d (status %s)\n", view.JobType, view.ID, view.Status)
	return nil
}
