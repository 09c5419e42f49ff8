package queue_test

import (
	"testing"

	"vidpipe/internal/queue"
)

func TestParseEnums(t *testing.T) {
	if s, ok := queue.ParseStatus(" Done "); !ok || s != queue.StatusDone {
		t.Fatalf("ParseStatus: %q %v", s, ok)
	}
	if _, ok := queue.ParseStatus("completed"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if jt, ok := queue.ParseJobType("quality_export"); !ok || jt != queue.JobTypeQualityExport {
		t.Fatalf("ParseJobType: %q %v", jt, ok)
	}
	for _, raw := range []string{"top-left", "top-right", "bottom-left", "bottom-right", "center"} {
		if _, ok := queue.ParsePosition(raw); !ok {
			t.Fatalf("expected position %q to parse", raw)
		}
	}
	if _, ok := queue.ParsePosition("middle"); ok {
		t.Fatal("expected unknown position to be rejected")
	}
	if _, ok := queue.ParseOverlayType("sticker"); ok {
		t.Fatal("expected unknown overlay type to be rejected")
	}
}

func TestQualityWidths(t *testing.T) {
	tests := map[queue.Quality]int{
		queue.Quality1080p:  1920,
		queue.Quality720p:   1280,
		queue.Quality480p:   854,
		queue.Quality("4k"): 0,
	}
	for quality, want := range tests {
		if got := quality.Width(); got != want {
			t.Fatalf("%s width = %d, want %d", quality, got, want)
		}
	}
}

func TestOverlayTypeJobType(t *testing.T) {
	if queue.OverlayWatermark.JobType() != queue.JobTypeWatermark {
		t.Fatal("watermark overlays run as watermark jobs")
	}
	for _, kind := range []queue.OverlayType{queue.OverlayText, queue.OverlayImage, queue.OverlayVideo} {
		if kind.JobType() != queue.JobTypeOverlay {
			t.Fatalf("%s overlays run as overlay jobs", kind)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if queue.StatusPending.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("pending/processing are not terminal")
	}
	if !queue.StatusDone.IsTerminal() || !queue.StatusFailed.IsTerminal() {
		t.Fatal("done/failed are terminal")
	}
}
