package teleop

// ButtonHooks are the side-effecting calls the dispatcher can emit. Nil hooks
// are skipped, so callers wire only the collaborators they have.
type ButtonHooks struct {
	// Resume fires on an X edge while waiting to resume.
	Resume func()
	// ManualCheckpoint fires on an X edge while not waiting.
	ManualCheckpoint func()
	// Rollback fires on a Y edge.
	Rollback func()
	// NextCamera fires on a B edge.
	NextCamera func()
	// ToggleVisibility fires on an A edge.
	ToggleVisibility func()
	// Home fires on a home edge, except while in cooldown.
	Home func()
	// ToggleFlashlight fires on a left/right arrow edge with the side name.
	ToggleFlashlight func(side string)
}

// ButtonDispatcher converts level-triggered button values into edge-triggered
// events: an event fires iff the current level is pressed and the stored
// previous level was released. Previous levels are updated unconditionally
// every tick and persist across episode resets, so a held button never
// re-fires.
type ButtonDispatcher struct {
	prev  map[Component]bool
	state func() State
	hooks ButtonHooks
}

// NewButtonDispatcher creates a dispatcher reading the safety state through
// the given accessor.
func NewButtonDispatcher(state func() State, hooks ButtonHooks) *ButtonDispatcher {
	return &ButtonDispatcher{
		prev:  make(map[Component]bool),
		state: state,
		hooks: hooks,
	}
}

// Process runs edge detection over all buttons for a single tick. Each event
// is independent; several may fire in the same tick.
func (d *ButtonDispatcher) Process(cmd Command) {
	edge := func(b Component) bool {
		level := cmd.Pressed(b)
		fired := level && !d.prev[b]
		d.prev[b] = level
		return fired
	}

	if edge(ButtonX) {
		if d.state() == StateWaitingToResume {
			call(d.hooks.Resume)
		} else {
			call(d.hooks.ManualCheckpoint)
		}
	}

	if edge(ButtonY) {
		call(d.hooks.Rollback)
	}

	if edge(ButtonB) {
		call(d.hooks.NextCamera)
	}

	if edge(ButtonA) {
		call(d.hooks.ToggleVisibility)
	}

	if edge(ButtonHome) {
		// A reset racing a cooldown-clamped motion is unsafe; ignore home
		// until the cooldown ends.
		if d.state() != StateCooldown {
			call(d.hooks.Home)
		}
	}

	if edge(ButtonLeft) {
		callSide(d.hooks.ToggleFlashlight, "left")
	}

	if edge(ButtonRight) {
		callSide(d.hooks.ToggleFlashlight, "right")
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func callSide(fn func(string), side string) {
	if fn != nil {
		fn(side)
	}
}
