package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"vidpipe/internal/deps"
	"vidpipe/internal/queue"
	"vidpipe/internal/workflow"
)

func TestFromJobEncodesNullableColumns(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	upload := FromJob(&queue.Job{ID: 1, Type: queue.JobTypeUpload, Status: queue.StatusPending, CreatedAt: created})
	if upload.VideoID != nil || upload.OverlayID != nil {
		t.Fatalf("pending upload should have null ids: %+v", upload)
	}
	if upload.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", upload.CreatedAt)
	}
	raw, err := json.Marshal(upload)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"video_id":null`) {
		t.Fatalf("expected explicit null video_id, got %s", raw)
	}

	start, end := 1.5, 3.0
	completed := created.Add(time.Minute)
	trim := FromJob(&queue.Job{
		ID: 2, VideoID: 7, Type: queue.JobTypeTrim, Status: queue.StatusDone,
		StartTime: &start, EndTime: &end, CompletedAt: &completed, OutputFile: "/p/out.mp4",
	})
	if trim.VideoID == nil || *trim.VideoID != 7 || *trim.StartTime != 1.5 || trim.CompletedAt == "" {
		t.Fatalf("unexpected trim dto: %+v", trim)
	}
}

func TestFromVideoMarksLineage(t *testing.T) {
	root := FromVideo(&queue.Video{ID: 1, Filename: "a.mp4"})
	if root.OriginalVideoID != nil {
		t.Fatalf("root video must not carry lineage")
	}
	derived := FromVideo(&queue.Video{ID: 2, Filename: "b.mp4", OriginalVideoID: 1})
	if derived.OriginalVideoID == nil || *derived.OriginalVideoID != 1 {
		t.Fatalf("derived video lost lineage: %+v", derived)
	}
}

func TestFromDerivativesNeverNil(t *testing.T) {
	dto := FromDerivatives(3, nil)
	raw, _ := json.Marshal(dto)
	if string(raw) != `{"video_id":3,"videos":[],"versions":[]}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	dto = FromDerivatives(3, &queue.Derivatives{
		Videos:   []*queue.Video{{ID: 4, OriginalVideoID: 3}},
		Versions: []*queue.VideoVersion{{ID: 1, VideoID: 3, Quality: queue.Quality480p}},
	})
	if len(dto.Videos) != 1 || len(dto.Versions) != 1 || dto.Versions[0].Quality != "480p" {
		t.Fatalf("unexpected derivatives: %+v", dto)
	}
}

func TestFromStatusSummaryFillsEveryStatus(t *testing.T) {
	dto := FromStatusSummary(workflow.StatusSummary{
		Running:    true,
		Workers:    2,
		QueueStats: map[queue.Status]int{queue.StatusDone: 3},
		LastJob:    &queue.Job{ID: 9, Status: queue.StatusFailed, ErrorMessage: "boom"},
	})
	if len(dto.QueueStats) != 4 || dto.QueueStats["done"] != 3 || dto.QueueStats["pending"] != 0 {
		t.Fatalf("unexpected stats: %v", dto.QueueStats)
	}
	if dto.InFlight == nil {
		t.Fatalf("in_flight should encode as an empty array")
	}
	if dto.LastJob == nil || dto.LastJob.ErrorMessage != "boom" {
		t.Fatalf("last job not converted: %+v", dto.LastJob)
	}
	if got := SortedStats(dto.QueueStats); got[0] != "done" || got[3] != "processing" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestFromDependencies(t *testing.T) {
	out := FromDependencies([]deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true, Version: "ffmpeg version 7"}})
	if len(out) != 1 || !out[0].Available || out[0].Version != "ffmpeg version 7" {
		t.Fatalf("unexpected dependencies: %+v", out)
	}
}
