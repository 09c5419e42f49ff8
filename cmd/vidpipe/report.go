package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// printJSON writes v the way the daemon API formats its responses.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

type health uint8

const (
	healthInfo health = iota
	healthOK
	healthWarn
	healthError
)

var healthStyles = [...]struct{ tag, color string }{
	healthInfo:  {"INFO", "\x1b[34m"},
	healthOK:    {"OK", "\x1b[32m"},
	healthWarn:  {"WARN", "\x1b[33m"},
	healthError: {"ERROR", "\x1b[31m"},
}

const (
	colorReset  = "\x1b[0m"
	reportLabel = 18
)

// report accumulates the sectioned lines printed by `vidpipe status`.
type report struct {
	color bool
	lines []string
}

func newReport(w io.Writer) *report {
	return &report{color: isTerminal(w)}
}

func (r *report) paint(color, s string) string {
	if !r.color || color == "" {
		return s
	}
	return color + s + colorReset
}

// section starts a titled block, separated from the previous one by a blank
// line.
func (r *report) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := "== " + strings.TrimSpace(title) + " =="
	r.lines = append(r.lines,
		r.paint(healthStyles[healthInfo].color, heading),
		r.paint(healthStyles[healthInfo].color, strings.Repeat("-", len(heading))),
	)
}

func (r *report) item(label string, h health, message string) {
	style := healthStyles[h]
	value := "[" + style.tag + "]"
	if message != "" {
		value += " " + message
	}
	r.lines = append(r.lines, r.paint(style.color, fmt.Sprintf("  %-*s %s", reportLabel, label+":", value)))
}

func (r *report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, strings.Join(r.lines, "\n")+"\n\n")
	return int64(n), err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
