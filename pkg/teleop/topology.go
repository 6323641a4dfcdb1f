package teleop

import "fmt"

// Topology describes a robot kinematic layout as a closed capability:
// the component slice table for splitting command vectors, the joint index
// table for measured state, and the action assembly routine. A topology is
// selected once at startup, never branched per tick.
type Topology interface {
	Name() string

	// Layout returns the ordered component layout used to split flat
	// command vectors positionally. Empty for component-addressed
	// topologies, where each write names its target component.
	Layout() []ComponentSpec

	// Components returns every valid command component with its width.
	Components() []ComponentSpec

	// ActionDim is the length of the synthesized action vector. The
	// actuation interface must declare the same dimensionality; a mismatch
	// is a fatal configuration error at startup.
	ActionDim() int

	// Arms lists the robot's arm sides ("left", "right").
	Arms() []string

	// ArmJointIndex returns the indices of an arm's joints within both the
	// action vector and the measured joint position vector.
	ArmJointIndex(side string) []int

	// GripperJointIndex returns the indices of an arm's gripper joints, or
	// nil if the topology has no grippers.
	GripperJointIndex(side string) []int

	// Assemble builds the actuator action vector from a command snapshot.
	Assemble(cmd Command, in AssembleInput) []float64
}

// AssembleInput carries the per-tick state the assembly routine needs.
type AssembleInput struct {
	// InCooldown enables the per-joint arm delta clamp.
	InCooldown bool
	// MaxArmDelta is the clamp bound in radians per tick.
	MaxArmDelta float64
	// Measured holds current joint positions, indexed like the action vector.
	// The clamp is recomputed from it every tick.
	Measured []float64
	// TrunkTranslate is the integrated trunk translate state.
	TrunkTranslate float64
	// TrunkTilt is the coupled trunk tilt offset applied to arm shoulders.
	TrunkTilt float64
	// ActiveArm selects which arm receives the command on single-arm
	// topologies.
	ActiveArm string
}

// NewTopology builds a topology by name.
func NewTopology(name string, singleArmDim int) (Topology, error) {
	switch name {
	case "dual_arm_mobile":
		return dualArmMobile{}, nil
	case "single_arm":
		if singleArmDim < 1 {
			return nil, fmt.Errorf("%w: single_arm topology needs a positive arm dimension, got %d",
				ErrConfiguration, singleArmDim)
		}
		return singleArm{armDim: singleArmDim}, nil
	default:
		return nil, fmt.Errorf("%w: unknown topology %q", ErrConfiguration, name)
	}
}

// --- Dual-arm mobile manipulator (two 6DOF arms, 3DOF base, trunk lift, grippers) ---

const (
	dualArmDim     = 6
	dualBaseDim    = 3
	dualTrunkCmd   = 2 // translate rate, tilt
	dualGripperDim = 1
)

// Action vector layout: [left arm 6][right arm 6][torso 4][base 3][left grip][right grip]
const (
	dualLeftArmStart  = 0
	dualRightArmStart = dualLeftArmStart + dualArmDim
	dualTrunkStart    = dualRightArmStart + dualArmDim
	dualBaseStart     = dualTrunkStart + TorsoJointCount
	dualLeftGripIdx   = dualBaseStart + dualBaseDim
	dualRightGripIdx  = dualLeftGripIdx + 1
	dualActionDim     = dualRightGripIdx + 1
)

// armShoulderDirections gives the sign of the trunk tilt offset added to each
// arm's first joint, compensating the coupled trunk tilt degree of freedom.
var armShoulderDirections = map[string]float64{"left": -1.0, "right": 1.0}

type dualArmMobile struct{}

func (dualArmMobile) Name() string { return "dual_arm_mobile" }

func (dualArmMobile) Layout() []ComponentSpec {
	return []ComponentSpec{
		{ComponentLeftArm, dualArmDim},
		{ComponentRightArm, dualArmDim},
		{ComponentBase, dualBaseDim},
		{ComponentTrunk, dualTrunkCmd},
		{ComponentLeftGripper, dualGripperDim},
		{ComponentRightGripper, dualGripperDim},
		{ButtonX, 1},
		{ButtonY, 1},
		{ButtonB, 1},
		{ButtonA, 1},
		{ButtonHome, 1},
		{ButtonLeft, 1},
		{ButtonRight, 1},
	}
}

func (t dualArmMobile) Components() []ComponentSpec { return t.Layout() }

func (dualArmMobile) ActionDim() int { return dualActionDim }

func (dualArmMobile) Arms() []string { return []string{"left", "right"} }

func (dualArmMobile) ArmJointIndex(side string) []int {
	switch side {
	case "left":
		return spanIndex(dualLeftArmStart, dualArmDim)
	case "right":
		return spanIndex(dualRightArmStart, dualArmDim)
	}
	return nil
}

func (dualArmMobile) GripperJointIndex(side string) []int {
	switch side {
	case "left":
		return []int{dualLeftGripIdx}
	case "right":
		return []int{dualRightGripIdx}
	}
	return nil
}

func (t dualArmMobile) Assemble(cmd Command, in AssembleInput) []float64 {
	action := make([]float64, dualActionDim)

	for _, side := range t.Arms() {
		arm := Component(side + "_arm")
		target := make([]float64, dualArmDim)
		copy(target, cmd.Vector(arm))

		idx := t.ArmJointIndex(side)
		if in.InCooldown {
			// Clamp per-joint displacement against the live measured
			// position, not the position at cooldown entry.
			for j, k := range idx {
				if k >= len(in.Measured) {
					break
				}
				delta := clip(target[j]-in.Measured[k], -in.MaxArmDelta, in.MaxArmDelta)
				target[j] = in.Measured[k] + delta
			}
		}
		target[0] += in.TrunkTilt * armShoulderDirections[side]

		for j, k := range idx {
			action[k] = target[j]
		}
	}

	base := cmd.Vector(ComponentBase)
	for j := 0; j < dualBaseDim && j < len(base); j++ {
		action[dualBaseStart+j] = base[j]
	}

	action[dualLeftGripIdx] = cmd.Scalar(ComponentLeftGripper)
	action[dualRightGripIdx] = cmd.Scalar(ComponentRightGripper)

	torso := TorsoPoseFromTranslate(in.TrunkTranslate)
	for j := 0; j < TorsoJointCount; j++ {
		action[dualTrunkStart+j] = torso[j]
	}

	return action
}

// --- Single active arm, no coupled trunk or base DOF ---

type singleArm struct {
	armDim int
}

func (singleArm) Name() string { return "single_arm" }

// Single-arm command writes are addressed by component name, so there is no
// positional layout.
func (singleArm) Layout() []ComponentSpec { return nil }

func (t singleArm) Components() []ComponentSpec {
	return []ComponentSpec{
		{ComponentLeftArm, t.armDim},
		{ComponentRightArm, t.armDim},
		{ButtonX, 1},
		{ButtonY, 1},
		{ButtonB, 1},
		{ButtonA, 1},
		{ButtonHome, 1},
		{ButtonLeft, 1},
		{ButtonRight, 1},
	}
}

func (t singleArm) ActionDim() int { return 2 * t.armDim }

func (singleArm) Arms() []string { return []string{"left", "right"} }

func (t singleArm) ArmJointIndex(side string) []int {
	switch side {
	case "left":
		return spanIndex(0, t.armDim)
	case "right":
		return spanIndex(t.armDim, t.armDim)
	}
	return nil
}

func (singleArm) GripperJointIndex(string) []int { return nil }

func (t singleArm) Assemble(cmd Command, in AssembleInput) []float64 {
	action := make([]float64, t.ActionDim())
	arm := Component(in.ActiveArm + "_arm")
	target := cmd.Vector(arm)
	for j, k := range t.ArmJointIndex(in.ActiveArm) {
		if j >= len(target) {
			break
		}
		action[k] = target[j]
	}
	return action
}

func spanIndex(start, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = start + i
	}
	return idx
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
