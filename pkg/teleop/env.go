package teleop

// StepResult carries the outcome of one applied environment step.
type StepResult struct {
	Reward     float64
	Terminated bool
	Truncated  bool
	// GoalStatus is the optional task goal feed; nil when no task is active.
	GoalStatus *GoalStatus
}

// ContactReport summarizes per-link contact state for observations.
type ContactReport struct {
	Base  bool
	Trunk bool
	// Arms maps arm side ("left", "right") to contact.
	Arms map[string]bool
}

// Environment is the actuation/simulation collaborator. The control loop is
// its only caller; implementations need no internal locking for loop access.
type Environment interface {
	// ActionDim is the declared action dimensionality. It must match the
	// selected topology or the server refuses to start.
	ActionDim() int
	// NumJoints is the degree-of-freedom count reported over RPC. Joint
	// position/velocity vectors have this length.
	NumJoints() int
	// Step applies an action and advances the world one tick.
	Step(action []float64) (StepResult, error)
	// StepPassive advances the world one tick without applying new actions.
	StepPassive() error
	// Reset restores the initial episode state and returns the joint
	// positions after the reset.
	Reset() ([]float64, error)
	JointPositions() []float64
	JointVelocities() []float64
	Contacts() ContactReport
	// Close tears the actuation interface down. Called last during shutdown.
	Close() error
}

// CameraSwitcher advances the active viewpoint. External collaborator.
type CameraSwitcher interface {
	NextCamera()
}

// SceneToggler flips visibility/highlight flags on the task-relevant and
// task-irrelevant object sets. External collaborator.
type SceneToggler interface {
	ToggleVisibility()
}

// FlashlightToggler toggles a per-side illumination accessory. External
// collaborator.
type FlashlightToggler interface {
	ToggleFlashlight(side string)
}
