package teleop

import (
	"testing"
	"time"
)

func TestSafetyMonitorInitialState(t *testing.T) {
	m := NewSafetyMonitor(3 * time.Second)

	if m.State() != StateWaitingToResume {
		t.Fatalf("Expected initial state waiting_to_resume, got %s", m.State())
	}
	if !m.Waiting() {
		t.Error("Expected Waiting() to be true initially")
	}
	if m.InCooldown() {
		t.Error("Expected InCooldown() to be false initially")
	}
}

func TestSafetyMonitorResumeStartsCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewSafetyMonitor(3 * time.Second)
	m.now = func() time.Time { return now }

	if !m.Resume() {
		t.Fatal("Expected Resume to transition out of waiting")
	}
	if m.State() != StateCooldown {
		t.Fatalf("Expected cooldown after resume, got %s", m.State())
	}
	want := now.Add(3 * time.Second)
	if !m.Deadline().Equal(want) {
		t.Errorf("Expected cooldown deadline %v, got %v", want, m.Deadline())
	}

	// Resume is a no-op outside of waiting.
	if m.Resume() {
		t.Error("Expected Resume to be ignored while in cooldown")
	}
	if m.State() != StateCooldown {
		t.Errorf("Expected state unchanged, got %s", m.State())
	}
}

func TestSafetyMonitorCooldownExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewSafetyMonitor(3 * time.Second)
	m.now = func() time.Time { return now }
	m.Resume()

	// Before the deadline the state holds.
	now = now.Add(2 * time.Second)
	if got := m.Tick(); got != StateCooldown {
		t.Fatalf("Expected cooldown before deadline, got %s", got)
	}

	// At the deadline the cooldown ends.
	now = now.Add(time.Second)
	if got := m.Tick(); got != StateRunning {
		t.Fatalf("Expected running at deadline, got %s", got)
	}
	if m.InCooldown() {
		t.Error("Expected InCooldown() false after expiry")
	}

	// Further ticks stay running.
	if got := m.Tick(); got != StateRunning {
		t.Errorf("Expected running to persist, got %s", got)
	}
}

func TestSafetyMonitorZeroCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewSafetyMonitor(0)
	m.now = func() time.Time { return now }

	m.Resume()
	if got := m.Tick(); got != StateRunning {
		t.Fatalf("Expected zero cooldown to expire on the next tick, got %s", got)
	}
}

func TestSafetyMonitorForceWaiting(t *testing.T) {
	m := NewSafetyMonitor(time.Second)
	m.Resume()
	m.ForceWaiting()

	if m.State() != StateWaitingToResume {
		t.Fatalf("Expected waiting after ForceWaiting, got %s", m.State())
	}
	if !m.Deadline().IsZero() {
		t.Error("Expected deadline cleared by ForceWaiting")
	}
	// Waiting never self-advances.
	if got := m.Tick(); got != StateWaitingToResume {
		t.Errorf("Expected waiting to persist across ticks, got %s", got)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateWaitingToResume: "waiting_to_resume",
		StateCooldown:        "cooldown",
		StateRunning:         "running",
		State(99):            "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
