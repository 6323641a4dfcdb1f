package teleop

import "time"

// State is the safety state of the control loop. Exactly one state is active
// at a time.
type State int

const (
	// StateWaitingToResume steps the world without applying actions. It is
	// the initial state and is re-entered on every reset and rollback. The
	// only way out is an explicit resume event.
	StateWaitingToResume State = iota
	// StateCooldown applies actions with per-tick arm displacement clamped.
	StateCooldown
	// StateRunning applies actions unclamped.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateWaitingToResume:
		return "waiting_to_resume"
	case StateCooldown:
		return "cooldown"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// SafetyMonitor owns the resume/cooldown state machine. It is used only from
// the control loop goroutine; other goroutines read state through the cached
// observation snapshot.
type SafetyMonitor struct {
	state    State
	cooldown time.Duration
	deadline time.Time
	now      func() time.Time
}

// NewSafetyMonitor creates a monitor in StateWaitingToResume with the given
// cooldown duration.
func NewSafetyMonitor(cooldown time.Duration) *SafetyMonitor {
	return &SafetyMonitor{
		state:    StateWaitingToResume,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// State returns the current safety state.
func (m *SafetyMonitor) State() State { return m.state }

// Waiting reports whether actions are currently withheld.
func (m *SafetyMonitor) Waiting() bool { return m.state == StateWaitingToResume }

// InCooldown reports whether the per-tick arm delta clamp is active.
func (m *SafetyMonitor) InCooldown() bool { return m.state == StateCooldown }

// Deadline returns the wall-clock time at which the active cooldown ends.
// Meaningful only while in StateCooldown.
func (m *SafetyMonitor) Deadline() time.Time { return m.deadline }

// Resume leaves StateWaitingToResume and starts a fresh cooldown window.
// It reports whether a transition happened; in any other state it is a no-op.
func (m *SafetyMonitor) Resume() bool {
	if m.state != StateWaitingToResume {
		return false
	}
	m.state = StateCooldown
	m.deadline = m.now().Add(m.cooldown)
	return true
}

// Tick advances the state machine once per control loop tick: an elapsed
// cooldown deadline transitions to StateRunning. Returns the state after the
// tick.
func (m *SafetyMonitor) Tick() State {
	if m.state == StateCooldown && !m.now().Before(m.deadline) {
		m.state = StateRunning
	}
	return m.state
}

// ForceWaiting drops back to StateWaitingToResume, discarding any in-flight
// cooldown timer. Used by reset and rollback.
func (m *SafetyMonitor) ForceWaiting() {
	m.state = StateWaitingToResume
	m.deadline = time.Time{}
}
