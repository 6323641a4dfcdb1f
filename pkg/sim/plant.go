// Package sim provides a first-order kinematic plant implementing the
// actuation collaborator, so the server runs end to end without an external
// simulator. Each actuated degree of freedom is modelled as a joint servo
// slewing toward its commanded target at a bounded speed.
package sim

import "github.com/open-teleop/robot-server/pkg/teleop"

// Plant is a kinematic joint-servo environment. The joint space matches the
// action space one to one. It is owned by the control loop and needs no
// internal locking.
type Plant struct {
	dim      int
	maxSpeed float64 // rad/s per joint
	dt       float64 // seconds per tick
	initial  []float64

	pos []float64
	vel []float64
}

// NewPlant creates a plant with dim joints starting at the initial pose.
// A nil initial pose starts at zero.
func NewPlant(dim int, tickRateHz int, maxSpeed float64, initial []float64) *Plant {
	init := make([]float64, dim)
	copy(init, initial)
	p := &Plant{
		dim:      dim,
		maxSpeed: maxSpeed,
		dt:       1.0 / float64(tickRateHz),
		initial:  init,
		pos:      make([]float64, dim),
		vel:      make([]float64, dim),
	}
	copy(p.pos, init)
	return p
}

func (p *Plant) ActionDim() int { return p.dim }
func (p *Plant) NumJoints() int { return p.dim }

// Step slews every joint toward its action target, bounded by the plant's
// maximum joint speed.
func (p *Plant) Step(action []float64) (teleop.StepResult, error) {
	maxDelta := p.maxSpeed * p.dt
	for i := 0; i < p.dim; i++ {
		var target float64
		if i < len(action) {
			target = action[i]
		}
		delta := target - p.pos[i]
		if delta > maxDelta {
			delta = maxDelta
		} else if delta < -maxDelta {
			delta = -maxDelta
		}
		p.pos[i] += delta
		p.vel[i] = delta / p.dt
	}
	return teleop.StepResult{}, nil
}

// StepPassive advances time without new targets; joints hold position.
func (p *Plant) StepPassive() error {
	for i := range p.vel {
		p.vel[i] = 0
	}
	return nil
}

// Reset restores the initial pose and returns it.
func (p *Plant) Reset() ([]float64, error) {
	copy(p.pos, p.initial)
	for i := range p.vel {
		p.vel[i] = 0
	}
	out := make([]float64, p.dim)
	copy(out, p.pos)
	return out, nil
}

func (p *Plant) JointPositions() []float64 {
	out := make([]float64, p.dim)
	copy(out, p.pos)
	return out
}

func (p *Plant) JointVelocities() []float64 {
	out := make([]float64, p.dim)
	copy(out, p.vel)
	return out
}

// Contacts always reports no contact; the kinematic model has no collision
// geometry.
func (p *Plant) Contacts() teleop.ContactReport {
	return teleop.ContactReport{Arms: map[string]bool{}}
}

func (p *Plant) Close() error { return nil }
