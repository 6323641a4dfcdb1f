package recording

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	customlog "github.com/open-teleop/robot-server/pkg/log"
)

type testLogger struct{}

func (testLogger) Debugf(string, ...interface{})                    {}
func (testLogger) Infof(string, ...interface{})                     {}
func (testLogger) Warnf(string, ...interface{})                     {}
func (testLogger) Errorf(string, ...interface{})                    {}
func (testLogger) Fatalf(string, ...interface{})                    {}
func (l testLogger) WithField(string, interface{}) customlog.Logger { return l }

func newTestRecorder(t *testing.T) (*EpisodeRecorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.jsonl")
	rec, err := NewEpisodeRecorder(path, testLogger{})
	if err != nil {
		t.Fatalf("NewEpisodeRecorder failed: %v", err)
	}
	return rec, path
}

func TestRecorderRequiresPath(t *testing.T) {
	if _, err := NewEpisodeRecorder("", testLogger{}); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestRecorderCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "episode.jsonl")
	rec, err := NewEpisodeRecorder(path, testLogger{})
	if err != nil {
		t.Fatalf("NewEpisodeRecorder failed: %v", err)
	}
	if err := rec.SaveData(); err != nil {
		t.Fatalf("SaveData failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected recording file created: %v", err)
	}
}

func TestRecorderRollbackTruncatesToCheckpoint(t *testing.T) {
	rec, _ := newTestRecorder(t)

	for i := uint64(1); i <= 3; i++ {
		if err := rec.RecordStep(i, []float64{float64(i)}); err != nil {
			t.Fatalf("RecordStep failed: %v", err)
		}
	}
	if err := rec.UpdateCheckpoint(); err != nil {
		t.Fatalf("UpdateCheckpoint failed: %v", err)
	}
	for i := uint64(4); i <= 6; i++ {
		if err := rec.RecordStep(i, []float64{float64(i)}); err != nil {
			t.Fatalf("RecordStep failed: %v", err)
		}
	}

	if err := rec.RollbackToCheckpoint(); err != nil {
		t.Fatalf("RollbackToCheckpoint failed: %v", err)
	}
	if got := rec.FrameCount(); got != 3 {
		t.Errorf("Expected 3 frames after rollback, got %d", got)
	}

	// Frames before the mark are untouched; recording continues after it.
	if err := rec.RecordStep(7, []float64{7}); err != nil {
		t.Fatalf("RecordStep after rollback failed: %v", err)
	}
	if got := rec.FrameCount(); got != 4 {
		t.Errorf("Expected 4 frames, got %d", got)
	}
}

func TestRecorderRollbackWithoutCheckpointDropsEverything(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.RecordStep(1, []float64{1})
	rec.RecordStep(2, []float64{2})
	if err := rec.RollbackToCheckpoint(); err != nil {
		t.Fatalf("RollbackToCheckpoint failed: %v", err)
	}
	if got := rec.FrameCount(); got != 0 {
		t.Errorf("Expected empty recording, got %d frames", got)
	}
}

func TestRecorderSaveWritesJSONLines(t *testing.T) {
	rec, path := newTestRecorder(t)

	rec.RecordStep(1, []float64{0.5, -0.5})
	rec.RecordStep(2, []float64{0.6, -0.6})
	if err := rec.SaveData(); err != nil {
		t.Fatalf("SaveData failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open recording: %v", err)
	}
	defer f.Close()

	var frames []Frame
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var fr Frame
		if err := json.Unmarshal(scanner.Bytes(), &fr); err != nil {
			t.Fatalf("Invalid JSON line: %v", err)
		}
		frames = append(frames, fr)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if frames[0].Tick != 1 || frames[1].Tick != 2 {
		t.Errorf("Unexpected tick order: %d, %d", frames[0].Tick, frames[1].Tick)
	}
	if frames[0].Action[0] != 0.5 {
		t.Errorf("Unexpected action payload: %v", frames[0].Action)
	}
	if frames[0].Episode != rec.EpisodeID() {
		t.Errorf("Expected episode id %q, got %q", rec.EpisodeID(), frames[0].Episode)
	}
}

func TestRecorderSaveIsFinal(t *testing.T) {
	rec, _ := newTestRecorder(t)

	rec.RecordStep(1, []float64{1})
	if err := rec.SaveData(); err != nil {
		t.Fatalf("SaveData failed: %v", err)
	}

	// Saving again is a no-op; recording after save fails.
	if err := rec.SaveData(); err != nil {
		t.Errorf("Expected idempotent save, got %v", err)
	}
	if err := rec.RecordStep(2, []float64{2}); err == nil {
		t.Error("Expected RecordStep to fail after save")
	}
}

func TestRecorderCopiesActionSlices(t *testing.T) {
	rec, _ := newTestRecorder(t)

	action := []float64{1.0}
	rec.RecordStep(1, action)
	action[0] = 99

	rec.mu.Lock()
	got := rec.frames[0].Action[0]
	rec.mu.Unlock()
	if got != 1.0 {
		t.Errorf("Recorded action aliased the caller's slice: %v", got)
	}
}
