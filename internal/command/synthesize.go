package command

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"vidpipe/internal/services"
)

const (
	defaultFontSize  = 36
	defaultFontColor = "white"
)

// TextStyle controls drawtext rendering.
type TextStyle struct {
	FontSize  int
	FontColor string
}

// Request holds everything Synthesize needs for one job.
type Request struct {
	JobID          int64
	SourcePath     string
	SourceFilename string
	OutputDir      string
	Operation      Operation
	Style          TextStyle
}

// workPrefix marks in-progress outputs; storage sweeps stale ones.
const workPrefix = ".partial-"

// Invocation is a complete ffmpeg argument list (without the binary).
// ffmpeg writes WorkPath; the caller renames it to OutputPath once the run
// succeeds.
type Invocation struct {
	Args       []string
	OutputName string
	OutputPath string
	WorkPath   string
}

// OutputName returns the deterministic output filename for an operation.
func OutputName(jobID int64, sourceFilename string, op Operation) (string, error) {
	source := filepath.Base(strings.TrimSpace(sourceFilename))
	if source == "" || source == "." || source == string(filepath.Separator) {
		return "", services.Wrap(services.ErrValidation, "command", "output name", "source filename is empty", nil)
	}
	switch v := op.(type) {
	case Trim:
		return fmt.Sprintf("trimmed_%d_%s", jobID, source), nil
	case TextOverlay, MediaOverlay:
		return fmt.Sprintf("overlay_%d_%s", jobID, source), nil
	case QualityExport:
		return fmt.Sprintf("%s_%s", v.Quality, source), nil
	default:
		return "", unsupported(op)
	}
}

// Synthesize builds the ffmpeg invocation for req. It never touches the
// filesystem.
func Synthesize(req Request) (Invocation, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return Invocation{}, services.Wrap(services.ErrValidation, "command", "synthesize", "source path is empty", nil)
	}
	if req.Operation == nil {
		return Invocation{}, services.Wrap(services.ErrValidation, "command", "synthesize", "operation is nil", nil)
	}
	name, err := OutputName(req.JobID, req.SourceFilename, req.Operation)
	if err != nil {
		return Invocation{}, err
	}
	output := filepath.Join(req.OutputDir, name)
	work := filepath.Join(req.OutputDir, fmt.Sprintf("%s%d-%s", workPrefix, req.JobID, name))

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	switch op := req.Operation.(type) {
	case Trim:
		args = append(args,
			"-ss", formatSeconds(op.Start),
			"-i", req.SourcePath,
			"-t", formatSeconds(op.Duration()),
			"-c", "copy",
		)
	case TextOverlay:
		filter, err := drawtextFilter(op, req.Style)
		if err != nil {
			return Invocation{}, err
		}
		args = append(args,
			"-i", req.SourcePath,
			"-vf", filter,
			"-c:a", "copy",
		)
	case MediaOverlay:
		x, y, ok := MediaCoordinates(op.Position)
		if !ok {
			return Invocation{}, services.Wrap(services.ErrValidation, "command", "media overlay",
				fmt.Sprintf("unsupported position %q", op.Position), nil)
		}
		graph := fmt.Sprintf("[0:v][1:v]overlay=x=%s:y=%s:enable='%s'[v]", x, y, enableExpr(op.Window))
		args = append(args,
			"-i", req.SourcePath,
			"-i", op.MediaPath,
			"-filter_complex", graph,
			"-map", "[v]",
			"-map", "0:a?",
		)
		if op.SecondaryAudio {
			args = append(args, "-map", "1:a")
		}
		args = append(args, "-c:a", "copy")
	case QualityExport:
		width := op.Quality.Width()
		if width == 0 {
			return Invocation{}, services.Wrap(services.ErrValidation, "command", "quality export",
				fmt.Sprintf("unsupported quality %q", op.Quality), nil)
		}
		args = append(args,
			"-i", req.SourcePath,
			"-vf", fmt.Sprintf("scale=%d:-2", width),
			"-c:a", "copy",
		)
	default:
		return Invocation{}, unsupported(req.Operation)
	}
	args = append(args, work)

	return Invocation{Args: args, OutputName: name, OutputPath: output, WorkPath: work}, nil
}

func drawtextFilter(op TextOverlay, style TextStyle) (string, error) {
	x, y, ok := TextCoordinates(op.Position)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "command", "text overlay",
			fmt.Sprintf("unsupported position %q", op.Position), nil)
	}
	size := style.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	color := strings.TrimSpace(style.FontColor)
	if color == "" {
		color = defaultFontColor
	}

	parts := []string{"text=" + escapeFilterValue(op.Text)}
	if op.FontFile != "" {
		parts = append(parts, "fontfile="+escapeFilterValue(op.FontFile))
	}
	parts = append(parts,
		"expansion=none",
		"x="+x,
		"y="+y,
		"fontsize="+strconv.Itoa(size),
		"fontcolor="+escapeFilterValue(color),
		"borderw=2",
		"bordercolor=black",
		"enable='"+enableExpr(op.Window)+"'",
	)
	return "drawtext=" + strings.Join(parts, ":"), nil
}

func enableExpr(w Window) string {
	return fmt.Sprintf("gte(t,%s)*lt(t,%s)", formatSeconds(w.Start), formatSeconds(w.End))
}

// drawtext values pass through two parsers: the filtergraph parser splits
// filters on [],; and then the filter's option parser splits on :. Each
// level consumes one layer of backslash escapes and strips single quotes.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`[`, `\[`,
		`]`, `\]`,
		`,`, `\,`,
		`;`, `\;`,
	)
)

// escapeFilterValue escapes value for use as an option inside a -vf graph.
func escapeFilterValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unsupported(op Operation) error {
	return services.Wrap(services.ErrUnsupported, "command", "synthesize", fmt.Sprintf("operation %T", op), nil)
}
