package teleop

import (
	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// testLogger discards all output.
type testLogger struct{}

func (testLogger) Debugf(string, ...interface{})                    {}
func (testLogger) Infof(string, ...interface{})                     {}
func (testLogger) Warnf(string, ...interface{})                     {}
func (testLogger) Errorf(string, ...interface{})                    {}
func (testLogger) Fatalf(string, ...interface{})                    {}
func (l testLogger) WithField(string, interface{}) customlog.Logger { return l }

// fakeRecorder counts recorder calls and can be made to fail.
type fakeRecorder struct {
	steps       int
	checkpoints int
	rollbacks   int
	saves       int
	lastTick    uint64
	lastAction  []float64
	err         error
}

func (r *fakeRecorder) RecordStep(tick uint64, action []float64) error {
	r.steps++
	r.lastTick = tick
	r.lastAction = append([]float64(nil), action...)
	return r.err
}

func (r *fakeRecorder) UpdateCheckpoint() error {
	if r.err != nil {
		return r.err
	}
	r.checkpoints++
	return nil
}

func (r *fakeRecorder) RollbackToCheckpoint() error {
	if r.err != nil {
		return r.err
	}
	r.rollbacks++
	return nil
}

func (r *fakeRecorder) SaveData() error {
	r.saves++
	return r.err
}

// fakeEnv is a scriptable environment that records how it was driven.
type fakeEnv struct {
	dim          int
	pos          []float64
	vel          []float64
	resetPos     []float64
	steps        int
	passiveSteps int
	resets       int
	closed       bool
	lastAction   []float64
	stepResult   StepResult
	stepErr      error
}

func newFakeEnv(dim int) *fakeEnv {
	return &fakeEnv{
		dim:      dim,
		pos:      make([]float64, dim),
		vel:      make([]float64, dim),
		resetPos: make([]float64, dim),
	}
}

func (e *fakeEnv) ActionDim() int { return e.dim }
func (e *fakeEnv) NumJoints() int { return e.dim }

func (e *fakeEnv) Step(action []float64) (StepResult, error) {
	e.steps++
	e.lastAction = append([]float64(nil), action...)
	copy(e.pos, action)
	return e.stepResult, e.stepErr
}

func (e *fakeEnv) StepPassive() error {
	e.passiveSteps++
	return nil
}

func (e *fakeEnv) Reset() ([]float64, error) {
	e.resets++
	copy(e.pos, e.resetPos)
	out := make([]float64, e.dim)
	copy(out, e.pos)
	return out, nil
}

func (e *fakeEnv) JointPositions() []float64 {
	out := make([]float64, e.dim)
	copy(out, e.pos)
	return out
}

func (e *fakeEnv) JointVelocities() []float64 {
	out := make([]float64, e.dim)
	copy(out, e.vel)
	return out
}

func (e *fakeEnv) Contacts() ContactReport {
	return ContactReport{Arms: map[string]bool{}}
}

func (e *fakeEnv) Close() error {
	e.closed = true
	return nil
}
