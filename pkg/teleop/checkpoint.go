package teleop

import (
	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// GoalStatus is the per-tick task goal feed from the environment.
type GoalStatus struct {
	Satisfied   []int `json:"satisfied"`
	Unsatisfied []int `json:"unsatisfied"`
}

// Recorder is the episode recording collaborator. The core only requests
// snapshots and rollbacks; checkpoint contents are opaque to it. Recording is
// optional: a nil Recorder turns every request into a no-op.
type Recorder interface {
	// RecordStep captures one applied control step.
	RecordStep(tick uint64, action []float64) error
	// UpdateCheckpoint snapshots the current recorder state.
	UpdateCheckpoint() error
	// RollbackToCheckpoint restores the last snapshot.
	RollbackToCheckpoint() error
	// SaveData finalizes the recording.
	SaveData() error
}

// CheckpointCoordinator decides when to ask the recorder for a checkpoint:
// periodically every interval ticks, when the satisfied goal count strictly
// increases, and on manual request. All three are independent.
type CheckpointCoordinator struct {
	rec    Recorder
	logger customlog.Logger
	// auto gates both the periodic and the goal-driven policies; manual
	// checkpoints always go through.
	auto          bool
	interval      int
	counter       int
	prevSatisfied int
}

// NewCheckpointCoordinator creates a coordinator. rec may be nil.
func NewCheckpointCoordinator(rec Recorder, auto bool, interval int, logger customlog.Logger) *CheckpointCoordinator {
	return &CheckpointCoordinator{
		rec:      rec,
		logger:   logger,
		auto:     auto,
		interval: interval,
	}
}

// Tick advances the periodic policy by one applied control step.
func (c *CheckpointCoordinator) Tick() {
	if !c.auto || c.rec == nil {
		return
	}
	c.counter++
	if c.counter >= c.interval {
		c.counter = 0
		if err := c.rec.UpdateCheckpoint(); err != nil {
			c.logger.Errorf("Periodic checkpoint failed: %v", err)
			return
		}
		c.logger.Infof("Auto recorded checkpoint (every %d ticks)", c.interval)
	}
}

// ObserveGoals feeds the latest goal status. A strict increase in the
// satisfied count since the last observation requests a checkpoint.
func (c *CheckpointCoordinator) ObserveGoals(gs *GoalStatus) {
	if gs == nil {
		return
	}
	satisfied := len(gs.Satisfied)
	increased := satisfied > c.prevSatisfied
	c.prevSatisfied = satisfied

	if !increased || !c.auto || c.rec == nil {
		return
	}
	if err := c.rec.UpdateCheckpoint(); err != nil {
		c.logger.Errorf("Goal checkpoint failed: %v", err)
		return
	}
	c.logger.Infof("Auto recorded checkpoint (goals satisfied: %d)", satisfied)
}

// Manual requests an operator-initiated checkpoint.
func (c *CheckpointCoordinator) Manual() {
	if c.rec == nil {
		return
	}
	if err := c.rec.UpdateCheckpoint(); err != nil {
		c.logger.Errorf("Manual checkpoint failed: %v", err)
		return
	}
	c.logger.Infof("Manually recorded checkpoint")
}

// Rollback requests a rollback to the last checkpoint. The caller must force
// the safety state back to waiting afterwards regardless of the outcome,
// since the restored state cannot be assumed compatible with an active
// cooldown clamp.
func (c *CheckpointCoordinator) Rollback() {
	if c.rec == nil {
		return
	}
	c.logger.Infof("Rolling back to latest checkpoint")
	if err := c.rec.RollbackToCheckpoint(); err != nil {
		c.logger.Errorf("Rollback failed: %v", err)
		return
	}
	c.logger.Infof("Finished rolling back")
}
