// Package recording implements the episode recording collaborator: an
// in-memory frame log with checkpoint/rollback, flushed to a JSON Lines file
// on save.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// Frame is one recorded control step.
type Frame struct {
	Tick     uint64    `json:"tick"`
	Time     time.Time `json:"time"`
	Action   []float64 `json:"action"`
	Episode  string    `json:"episode"`
	Rollback bool      `json:"rollback,omitempty"`
}

// EpisodeRecorder accumulates frames in memory. A checkpoint marks the
// current frame count; a rollback truncates back to the last mark, so
// checkpoint/rollback can never corrupt frames recorded before the mark.
type EpisodeRecorder struct {
	mu         sync.Mutex
	path       string
	episodeID  string
	logger     customlog.Logger
	frames     []Frame
	checkpoint int
	saved      bool
}

// NewEpisodeRecorder creates a recorder that will write to path on SaveData.
func NewEpisodeRecorder(path string, logger customlog.Logger) (*EpisodeRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("recording path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory '%s': %w", dir, err)
		}
	}
	return &EpisodeRecorder{
		path:      path,
		episodeID: uuid.NewString(),
		logger:    logger,
	}, nil
}

// EpisodeID returns the recorder's episode identifier.
func (r *EpisodeRecorder) EpisodeID() string { return r.episodeID }

// RecordStep appends one applied control step.
func (r *EpisodeRecorder) RecordStep(tick uint64, action []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saved {
		return fmt.Errorf("recording already finalized")
	}
	act := make([]float64, len(action))
	copy(act, action)
	r.frames = append(r.frames, Frame{
		Tick:    tick,
		Time:    time.Now(),
		Action:  act,
		Episode: r.episodeID,
	})
	return nil
}

// UpdateCheckpoint marks the current frame count as the rollback point.
func (r *EpisodeRecorder) UpdateCheckpoint() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkpoint = len(r.frames)
	r.logger.Debugf("Checkpoint at frame %d", r.checkpoint)
	return nil
}

// RollbackToCheckpoint discards every frame recorded after the last
// checkpoint.
func (r *EpisodeRecorder) RollbackToCheckpoint() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := len(r.frames) - r.checkpoint
	r.frames = r.frames[:r.checkpoint]
	r.logger.Infof("Rolled back %d frames to checkpoint at %d", dropped, r.checkpoint)
	return nil
}

// SaveData flushes all retained frames to the output file and finalizes the
// recording. Further RecordStep calls fail.
func (r *EpisodeRecorder) SaveData() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saved {
		return nil
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create recording file '%s': %w", r.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range r.frames {
		if err := enc.Encode(&r.frames[i]); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}

	r.saved = true
	r.logger.Infof("Saved %d frames to %s (episode %s)", len(r.frames), r.path, r.episodeID)
	return nil
}

// FrameCount returns the number of retained frames.
func (r *EpisodeRecorder) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
