// Package teleop implements the control core of the teleoperation server:
// the shared joint command state, the resume/cooldown safety state machine,
// per-topology action synthesis, button edge dispatch and episode checkpoint
// coordination.
package teleop

import (
	"fmt"
	"sync"
)

// Component names a slot of the shared joint command. The set of valid
// components and their vector widths is fixed per robot topology.
type Component string

const (
	ComponentLeftArm      Component = "left_arm"
	ComponentRightArm     Component = "right_arm"
	ComponentBase         Component = "base"
	ComponentTrunk        Component = "trunk"
	ComponentLeftGripper  Component = "left_gripper"
	ComponentRightGripper Component = "right_gripper"

	ButtonX     Component = "button_x"
	ButtonY     Component = "button_y"
	ButtonB     Component = "button_b"
	ButtonA     Component = "button_a"
	ButtonHome  Component = "button_home"
	ButtonLeft  Component = "button_left"
	ButtonRight Component = "button_right"
)

// ComponentSpec pairs a component name with its fixed vector width.
type ComponentSpec struct {
	Name Component
	Dim  int
}

// Command is a complete joint command snapshot, one vector per component.
// Snapshots handed out by the store are deep copies and safe to keep.
type Command map[Component][]float64

// Vector returns the command vector for a component, or nil if absent.
func (c Command) Vector(name Component) []float64 {
	return c[name]
}

// Scalar returns the first element of a component vector, or 0 if absent.
func (c Command) Scalar(name Component) float64 {
	v := c[name]
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Pressed reports whether a button component is at a nonzero level.
func (c Command) Pressed(name Component) bool {
	return c.Scalar(name) != 0
}

// Clone returns a deep copy of the command.
func (c Command) Clone() Command {
	out := make(Command, len(c))
	for name, vec := range c {
		cp := make([]float64, len(vec))
		copy(cp, vec)
		out[name] = cp
	}
	return out
}

// CommandStore is the single piece of state shared between the RPC transport
// goroutine and the control loop. Writes replace whole component vectors
// under the lock, so a tick can never observe a partially written component.
// The latest write to a component always wins.
type CommandStore struct {
	mu   sync.RWMutex
	topo Topology
	cmd  Command
}

// NewCommandStore creates a store with every component of the topology
// present and zeroed.
func NewCommandStore(topo Topology) *CommandStore {
	s := &CommandStore{topo: topo}
	s.cmd = zeroCommand(topo)
	return s
}

func zeroCommand(topo Topology) Command {
	cmd := make(Command)
	for _, spec := range topo.Components() {
		cmd[spec.Name] = make([]float64, spec.Dim)
	}
	return cmd
}

// SetVector splits a flat command vector positionally across the topology's
// fixed component layout. A shorter vector fills only the leading components;
// trailing input beyond the layout is ignored.
func (s *CommandStore) SetVector(vec []float64) error {
	layout := s.topo.Layout()
	if len(layout) == 0 {
		return fmt.Errorf("%w: topology %q is component-addressed, a component name is required",
			ErrProtocol, s.topo.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	for _, spec := range layout {
		if start >= len(vec) {
			break
		}
		end := start + spec.Dim
		if end > len(vec) {
			return fmt.Errorf("%w: command vector truncated inside component %q (got %d values)",
				ErrProtocol, spec.Name, len(vec))
		}
		dst := make([]float64, spec.Dim)
		copy(dst, vec[start:end])
		s.cmd[spec.Name] = dst
		start = end
	}
	return nil
}

// SetComponent atomically replaces a single named component vector.
func (s *CommandStore) SetComponent(name Component, vec []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.cmd[name]
	if !ok {
		return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidComponent, name, componentNames(s.topo))
	}
	if len(vec) != len(cur) {
		return fmt.Errorf("%w: component %q expects %d values, got %d",
			ErrProtocol, name, len(cur), len(vec))
	}
	dst := make([]float64, len(vec))
	copy(dst, vec)
	s.cmd[name] = dst
	return nil
}

// Snapshot returns a deep copy of the current command.
func (s *CommandStore) Snapshot() Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cmd.Clone()
}

// Reset replaces the whole command with the given initial state, zero-filling
// any topology component the initial state does not name.
func (s *CommandStore) Reset(initial Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := zeroCommand(s.topo)
	for name, vec := range initial {
		if cur, ok := cmd[name]; ok && len(cur) == len(vec) {
			copy(cur, vec)
		}
	}
	s.cmd = cmd
}

func componentNames(topo Topology) []Component {
	specs := topo.Components()
	names := make([]Component, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}
