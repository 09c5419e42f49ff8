package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// MediaStub describes a fake media file understood by the stub binaries.
type MediaStub struct {
	Duration float64
	Audio    bool
	// ReportedSize replaces the byte count ffprobe reports when set.
	ReportedSize string
}

// Contents renders the stub file body.
func (m MediaStub) Contents() []byte {
	audio := 0
	if m.Audio {
		audio = 1
	}
	body := fmt.Sprintf("vidpipe-stub\nduration=%g\naudio=%d\n", m.Duration, audio)
	if m.ReportedSize != "" {
		body += "size=" + m.ReportedSize + "\n"
	}
	return []byte(body)
}

// WriteMedia writes a stub media file at path.
func WriteMedia(t testing.TB, path string, media MediaStub) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, media.Contents(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
