package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"vidpipe/internal/command"
	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/media/ffprobe"
	"vidpipe/internal/queue"
	"vidpipe/internal/services"
	"vidpipe/internal/storage"
)

// jobResult describes what a job produced. cleanup lists files to remove
// if the job ends failed.
type jobResult struct {
	outputFile string
	video      *queue.Video
	version    *queue.VideoVersion
	cleanup    []string
}

type executor struct {
	cfg      *config.Config
	store    *queue.Store
	buckets  *storage.Buckets
	probe    func(ctx context.Context, binary, path string) (ffprobe.Metadata, error)
	hasAudio func(ctx context.Context, binary, path string) (bool, error)
	run      func(ctx context.Context, binary string, args []string) error
}

func newExecutor(cfg *config.Config, store *queue.Store, buckets *storage.Buckets) *executor {
	return &executor{
		cfg:      cfg,
		store:    store,
		buckets:  buckets,
		probe:    ffprobe.Probe,
		hasAudio: ffprobe.HasAudio,
		run:      runFFmpeg,
	}
}

func (e *executor) execute(ctx context.Context, logger *slog.Logger, job *queue.Job) (jobResult, error) {
	switch job.Type {
	case queue.JobTypeUpload:
		return e.upload(ctx, logger, job)
	case queue.JobTypeTrim, queue.JobTypeOverlay, queue.JobTypeWatermark, queue.JobTypeQualityExport:
		return e.transform(ctx, logger, job)
	default:
		return jobResult{}, services.Wrap(services.ErrUnsupported, "workflow", "execute", fmt.Sprintf("job type %q", job.Type), nil)
	}
}

// upload probes the staged file and records it as a root video. The staged
// file is removed when probing fails.
func (e *executor) upload(ctx context.Context, logger *slog.Logger, job *queue.Job) (jobResult, error) {
	path, err := e.buckets.Path(storage.Uploads, job.SourceFile)
	if err != nil {
		return jobResult{}, err
	}
	result := jobResult{cleanup: []string{path}}
	if !storage.FileExists(path) {
		return result, services.Wrap(services.ErrNotFound, "workflow", "upload", "staged file "+job.SourceFile, nil)
	}

	meta, err := e.probe(ctx, e.cfg.FFprobeBinary(), path)
	if err != nil {
		return result, err
	}
	logger.Debug("probed upload",
		logging.String("path", path),
		logging.Float64("duration", meta.Duration),
		logging.Int64("size", meta.Size),
	)

	video, err := e.store.CommitVideo(ctx, job.ID, queue.NewVideo{
		Filename: job.SourceFile,
		Size:     meta.Size,
		Duration: meta.Duration,
	}, path)
	if err != nil {
		return result, err
	}
	return jobResult{outputFile: path, video: video}, nil
}

// transform runs one ffmpeg operation against the job's source video and
// commits the derived video or quality version.
func (e *executor) transform(ctx context.Context, logger *slog.Logger, job *queue.Job) (jobResult, error) {
	source, err := e.store.GetVideo(ctx, job.VideoID)
	if err != nil {
		return jobResult{}, err
	}
	if source == nil {
		return jobResult{}, services.Wrap(services.ErrNotFound, "workflow", "resolve source", fmt.Sprintf("video %d", job.VideoID), nil)
	}
	sourcePath, err := e.buckets.SourcePath(source)
	if err != nil {
		return jobResult{}, err
	}
	if !storage.FileExists(sourcePath) {
		return jobResult{}, services.Wrap(services.ErrNotFound, "workflow", "resolve source", "source file "+sourcePath, nil)
	}

	op, err := e.operation(ctx, logger, job)
	if err != nil {
		return jobResult{}, err
	}
	inv, err := command.Synthesize(command.Request{
		JobID:          job.ID,
		SourcePath:     sourcePath,
		SourceFilename: source.Filename,
		OutputDir:      e.buckets.Dir(storage.Processed),
		Operation:      op,
		Style:          command.TextStyle{FontSize: e.cfg.FFmpeg.FontSize, FontColor: e.cfg.FFmpeg.FontColor},
	})
	if err != nil {
		return jobResult{}, err
	}

	result := jobResult{cleanup: []string{inv.WorkPath}}
	logger.Debug("running ffmpeg", logging.Args(logging.String("output", inv.OutputPath), logging.Any("args", inv.Args))...)
	if err := e.run(ctx, e.cfg.FFmpegBinary(), inv.Args); err != nil {
		return result, err
	}
	if !storage.FileExists(inv.WorkPath) {
		return result, services.Wrap(services.ErrExternalTool, "ffmpeg", string(job.Type), "exited cleanly without writing "+inv.WorkPath, nil)
	}
	if err := os.Rename(inv.WorkPath, inv.OutputPath); err != nil {
		return result, services.Wrap(services.ErrIO, "workflow", "finalize output", inv.OutputName, err)
	}

	result.cleanup = []string{inv.OutputPath}
	if export, ok := op.(command.QualityExport); ok {
		version, err := e.store.CommitVersion(ctx, job.ID, source.ID, export.Quality, inv.OutputPath)
		if err != nil {
			return result, err
		}
		return jobResult{outputFile: inv.OutputPath, version: version}, nil
	}

	info, err := os.Stat(inv.OutputPath)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "workflow", "stat output", inv.OutputName, err)
	}
	duration := source.Duration
	if trim, ok := op.(command.Trim); ok {
		duration = trim.Duration()
	}
	video, err := e.store.CommitVideo(ctx, job.ID, queue.NewVideo{
		Filename:        inv.OutputName,
		Size:            info.Size(),
		Duration:        duration,
		OriginalVideoID: source.ID,
	}, inv.OutputPath)
	if err != nil {
		return result, err
	}
	return jobResult{outputFile: inv.OutputPath, video: video}, nil
}

// operation builds the command variant for job, resolving overlay media,
// fonts and secondary audio presence from disk.
func (e *executor) operation(ctx context.Context, logger *slog.Logger, job *queue.Job) (command.Operation, error) {
	switch job.Type {
	case queue.JobTypeTrim:
		if job.StartTime == nil || job.EndTime == nil {
			return nil, services.Wrap(services.ErrValidation, "workflow", "trim", "start and end times are required", nil)
		}
		return command.NewTrim(*job.StartTime, *job.EndTime)
	case queue.JobTypeQualityExport:
		return command.NewQualityExport(job.Quality)
	case queue.JobTypeOverlay, queue.JobTypeWatermark:
		return e.overlayOperation(ctx, logger, job)
	default:
		return nil, services.Wrap(services.ErrUnsupported, "workflow", "operation", fmt.Sprintf("job type %q", job.Type), nil)
	}
}

func (e *executor) overlayOperation(ctx context.Context, logger *slog.Logger, job *queue.Job) (command.Operation, error) {
	overlay, err := e.store.GetOverlay(ctx, job.OverlayID)
	if err != nil {
		return nil, err
	}
	if overlay == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "overlay", fmt.Sprintf("overlay %d", job.OverlayID), nil)
	}

	var inputs command.OverlayInputs
	switch overlay.Type {
	case queue.OverlayText:
		if overlay.FontName != "" {
			font, ok := e.buckets.ResolveFont(overlay.FontName)
			if ok {
				inputs.FontFile = font
			} else {
				logging.WarnWithContext(logger, "font not found; using default font", "font_fallback",
					logging.String("font_name", overlay.FontName),
					logging.String(logging.FieldErrorHint, "place the font file in the fonts directory"),
				)
			}
		}
	case queue.OverlayImage, queue.OverlayVideo, queue.OverlayWatermark:
		mediaPath, err := e.buckets.Path(storage.Overlays, overlay.Content)
		if err != nil {
			return nil, err
		}
		if !storage.FileExists(mediaPath) {
			return nil, services.Wrap(services.ErrNotFound, "workflow", "overlay", "overlay media "+overlay.Content, nil)
		}
		inputs.MediaPath = mediaPath
		if overlay.Type == queue.OverlayVideo {
			hasAudio, err := e.hasAudio(ctx, e.cfg.FFprobeBinary(), mediaPath)
			if err != nil {
				return nil, err
			}
			inputs.SecondaryAudio = hasAudio
			if !hasAudio {
				logging.WarnWithContext(logger, "overlay video has no audio stream; keeping primary audio only", "overlay_audio_missing",
					logging.String("overlay_media", overlay.Content),
				)
			}
		}
	}
	op, err := command.FromOverlay(overlay, inputs)
	if err != nil {
		return nil, err
	}
	if op.JobType() != job.Type {
		return nil, services.Wrap(services.ErrValidation, "workflow", "overlay",
			fmt.Sprintf("overlay %d renders as %s, job is %s", overlay.ID, op.JobType(), job.Type), nil)
	}
	return op, nil
}
