package teleop

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/robot-server/pkg/config"
	customlog "github.com/open-teleop/robot-server/pkg/log"
)

// ActionPublisher publishes loop output to remote observers. Implemented by
// the ZeroMQ service; nil disables publishing.
type ActionPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// Status is a point-in-time summary of the control loop, refreshed once per
// tick and safe to read from other goroutines.
type Status struct {
	SessionID       string  `json:"session_id"`
	Episode         int     `json:"episode"`
	Tick            uint64  `json:"tick"`
	Topology        string  `json:"topology"`
	State           string  `json:"state"`
	WaitingToResume bool    `json:"waiting_to_resume"`
	InCooldown      bool    `json:"in_cooldown"`
	ActiveArm       string  `json:"active_arm"`
	TrunkTranslate  float64 `json:"trunk_translate"`
	Recording       bool    `json:"recording"`
}

// Options wires the server's collaborators. Only Env is required.
type Options struct {
	Env         Environment
	Recorder    Recorder
	Publisher   ActionPublisher
	Camera      CameraSwitcher
	Scene       SceneToggler
	Flashlights FlashlightToggler
}

// Server owns the authoritative robot state and runs the fixed-rate control
// loop. The RPC transport mutates only the command store and the event
// queue; everything else is loop-private or published as snapshots.
type Server struct {
	cfg    *config.Config
	logger customlog.Logger

	env    Environment
	rec    Recorder
	pub    ActionPublisher
	camera CameraSwitcher
	scene  SceneToggler
	lights FlashlightToggler

	topo    Topology
	cmds    *CommandStore
	safety  *SafetyMonitor
	buttons *ButtonDispatcher
	ckpt    *CheckpointCoordinator
	events  *EventQueue

	sessionID   string
	activeArm   string
	numDOFs     int
	dt          time.Duration
	maxArmDelta float64

	// Loop-private state.
	tickCount      uint64
	episode        int
	trunkTranslate float64
	trunkTilt      float64
	lastGoals      *GoalStatus
	pendingReset   bool

	// Snapshots shared with other goroutines.
	obsMu      sync.RWMutex
	obs        map[string]interface{}
	jointState []float64
	status     Status

	subMu   sync.RWMutex
	subs    map[int]chan []float64
	nextSub int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewServer validates the configured topology against the environment and
// assembles the control core. Mismatched action dimensionality is a fatal
// configuration error.
func NewServer(cfg *config.Config, logger customlog.Logger, opts Options) (*Server, error) {
	if opts.Env == nil {
		return nil, fmt.Errorf("%w: no environment attached", ErrConfiguration)
	}

	topo, err := NewTopology(cfg.Robot.Topology, cfg.Robot.SingleArmDim)
	if err != nil {
		return nil, err
	}
	if got := opts.Env.ActionDim(); got != topo.ActionDim() {
		return nil, fmt.Errorf("%w: topology %q expects action dim %d, environment declares %d",
			ErrConfiguration, topo.Name(), topo.ActionDim(), got)
	}
	if got := opts.Env.NumJoints(); got != topo.ActionDim() {
		return nil, fmt.Errorf("%w: topology %q expects %d joints, environment reports %d",
			ErrConfiguration, topo.Name(), topo.ActionDim(), got)
	}

	dt := time.Second / time.Duration(cfg.Robot.TickRateHz)

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		env:            opts.Env,
		rec:            opts.Recorder,
		pub:            opts.Publisher,
		camera:         opts.Camera,
		scene:          opts.Scene,
		lights:         opts.Flashlights,
		topo:           topo,
		safety:         NewSafetyMonitor(time.Duration(cfg.Robot.CooldownSecs * float64(time.Second))),
		sessionID:      uuid.NewString(),
		activeArm:      cfg.Robot.ActiveArm,
		numDOFs:        opts.Env.NumJoints(),
		dt:             dt,
		maxArmDelta:    cfg.Robot.CooldownMaxJointSpeedDegS * (math.Pi / 180.0) * dt.Seconds(),
		trunkTranslate: cfg.Robot.DefaultTrunkTranslate,
		subs:           make(map[int]chan []float64),
		stopCh:         make(chan struct{}),
	}
	s.cmds = NewCommandStore(topo)
	s.events = NewEventQueue(16, logger)
	s.ckpt = NewCheckpointCoordinator(opts.Recorder, cfg.Recording.AutoCheckpoint,
		cfg.Recording.CheckpointIntervalTicks, logger)
	s.buttons = NewButtonDispatcher(s.safety.State, ButtonHooks{
		Resume:           s.resume,
		ManualCheckpoint: s.ckpt.Manual,
		Rollback:         s.rollback,
		NextCamera:       s.nextCamera,
		ToggleVisibility: s.toggleVisibility,
		Home:             func() { s.pendingReset = true },
		ToggleFlashlight: s.toggleFlashlight,
	})

	return s, nil
}

// Run resets the episode and drives the control loop until the context is
// cancelled, a stop event arrives, or a collaborator fails. Collaborator
// errors are returned, not retried.
func (s *Server) Run(ctx context.Context) error {
	if err := s.reset(); err != nil {
		return err
	}
	s.logger.Infof("Control loop running at %d Hz (topology %s, action dim %d, session %s)",
		s.cfg.Robot.TickRateHz, s.topo.Name(), s.topo.ActionDim(), s.sessionID)

	ticker := time.NewTicker(s.dt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if err := s.tick(); err != nil {
				return err
			}
		}
	}
}

// tick runs one control loop iteration.
func (s *Server) tick() error {
	s.tickCount++

	stop := false
	s.events.Drain(func(ev ControlEvent) {
		switch ev {
		case EventResume:
			s.resume()
		case EventReset:
			s.pendingReset = true
		case EventStop:
			stop = true
		}
	})
	if stop {
		s.logger.Infof("Stop requested")
		s.requestStop()
		return nil
	}

	cmd := s.cmds.Snapshot()
	s.refreshObservations(cmd)
	s.buttons.Process(cmd)

	if s.pendingReset {
		s.pendingReset = false
		if err := s.reset(); err != nil {
			return err
		}
		return nil
	}

	prev := s.safety.State()
	if st := s.safety.Tick(); st != prev {
		s.logger.Infof("Safety state: %s -> %s", prev, st)
		s.publishState()
	}

	if s.safety.Waiting() {
		if err := s.env.StepPassive(); err != nil {
			return fmt.Errorf("passive step: %w", err)
		}
		return nil
	}

	action := s.synthesize(cmd)
	res, err := s.env.Step(action)
	if err != nil {
		return fmt.Errorf("environment step: %w", err)
	}
	if s.rec != nil {
		if err := s.rec.RecordStep(s.tickCount, action); err != nil {
			return fmt.Errorf("record step: %w", err)
		}
	}
	s.ckpt.Tick()
	s.ckpt.ObserveGoals(res.GoalStatus)
	s.lastGoals = res.GoalStatus

	s.publishAction(action)
	return nil
}

// synthesize integrates the trunk translate state and assembles the action
// vector for this tick.
func (s *Server) synthesize(cmd Command) []float64 {
	rate := cmd.Scalar(ComponentTrunk)
	s.trunkTranslate = ClampTrunkTranslate(s.trunkTranslate - rate*s.dt.Seconds())

	return s.topo.Assemble(cmd, AssembleInput{
		InCooldown:     s.safety.InCooldown(),
		MaxArmDelta:    s.maxArmDelta,
		Measured:       s.env.JointPositions(),
		TrunkTranslate: s.trunkTranslate,
		TrunkTilt:      s.trunkTilt,
		ActiveArm:      s.activeArm,
	})
}

// reset restores the episode: the environment, the command store (seeded
// from the post-reset joint positions, grippers open), the trunk integrator
// and the safety state. Button edge state deliberately survives.
func (s *Server) reset() error {
	pos, err := s.env.Reset()
	if err != nil {
		return fmt.Errorf("environment reset: %w", err)
	}

	initial := make(Command)
	for _, side := range s.topo.Arms() {
		idx := s.topo.ArmJointIndex(side)
		vec := make([]float64, len(idx))
		for j, k := range idx {
			if k < len(pos) {
				vec[j] = pos[k]
			}
		}
		initial[Component(side+"_arm")] = vec
		if s.topo.GripperJointIndex(side) != nil {
			initial[Component(side+"_gripper")] = []float64{1.0}
		}
	}
	s.cmds.Reset(initial)

	s.trunkTranslate = s.cfg.Robot.DefaultTrunkTranslate
	s.trunkTilt = 0
	s.lastGoals = nil
	s.safety.ForceWaiting()
	s.episode++

	s.logger.Infof("Episode %d reset; waiting to resume", s.episode)
	s.publishState()
	return nil
}

func (s *Server) resume() {
	if s.safety.Resume() {
		s.logger.Infof("Control resumed; cooldown until %s",
			s.safety.Deadline().Format("15:04:05.000"))
		s.publishState()
	}
}

func (s *Server) rollback() {
	s.ckpt.Rollback()
	// The restored state is not compatible with an active cooldown clamp.
	s.safety.ForceWaiting()
	s.logger.Infof("Waiting to resume after rollback")
	s.publishState()
}

func (s *Server) nextCamera() {
	if s.camera != nil {
		s.camera.NextCamera()
		s.logger.Debugf("Switched active camera")
	}
}

func (s *Server) toggleVisibility() {
	if s.scene != nil {
		s.scene.ToggleVisibility()
		s.logger.Debugf("Toggled scene visibility")
	}
}

func (s *Server) toggleFlashlight(side string) {
	if s.lights != nil {
		s.lights.ToggleFlashlight(side)
		s.logger.Debugf("Toggled %s flashlight", side)
	}
}

// refreshObservations rebuilds the shared observation and joint state
// snapshots. Snapshots are replaced, never mutated, so readers may keep them.
func (s *Server) refreshObservations(cmd Command) {
	pos := s.env.JointPositions()
	vel := s.env.JointVelocities()
	contacts := s.env.Contacts()

	obs := map[string]interface{}{
		"session_id":        s.sessionID,
		"episode":           s.episode,
		"tick":              s.tickCount,
		"state":             s.safety.State().String(),
		"active_arm":        s.activeArm,
		"in_cooldown":       s.safety.InCooldown(),
		"waiting_to_resume": s.safety.Waiting(),
		"base_contact":      contacts.Base,
		"trunk_contact":     contacts.Trunk,
		"reset_joints":      cmd.Pressed(ButtonY),
		"trunk_translate":   s.trunkTranslate,
	}

	for _, side := range s.topo.Arms() {
		idx := s.topo.ArmJointIndex(side)
		jp := gather(pos, idx)
		// Report shoulder positions with the coupled tilt offset removed.
		if len(jp) > 0 {
			jp[0] -= s.trunkTilt * armShoulderDirections[side]
		}
		obs["arm_"+side+"_joint_positions"] = jp
		obs["arm_"+side+"_joint_velocities"] = gather(vel, idx)
		obs["arm_"+side+"_contact"] = contacts.Arms[side]

		if g := s.topo.GripperJointIndex(side); g != nil {
			obs["arm_"+side+"_gripper_positions"] = gather(pos, g)
			obs[side+"_gripper"] = cmd.Scalar(Component(side + "_gripper"))
		}
	}

	if s.lastGoals != nil {
		obs["goal_status"] = s.lastGoals
	}

	joint := make([]float64, len(pos))
	copy(joint, pos)

	status := Status{
		SessionID:       s.sessionID,
		Episode:         s.episode,
		Tick:            s.tickCount,
		Topology:        s.topo.Name(),
		State:           s.safety.State().String(),
		WaitingToResume: s.safety.Waiting(),
		InCooldown:      s.safety.InCooldown(),
		ActiveArm:       s.activeArm,
		TrunkTranslate:  s.trunkTranslate,
		Recording:       s.rec != nil,
	}

	s.obsMu.Lock()
	s.obs = obs
	s.jointState = joint
	s.status = status
	s.obsMu.Unlock()
}

func gather(src []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for j, k := range idx {
		if k < len(src) {
			out[j] = src[k]
		}
	}
	return out
}

func (s *Server) publishAction(action []float64) {
	s.subMu.RLock()
	for _, sub := range s.subs {
		select {
		case sub <- action:
		default:
			// Slow subscriber, drop this frame for it.
		}
	}
	s.subMu.RUnlock()

	if s.pub != nil {
		payload := map[string]interface{}{
			"session_id": s.sessionID,
			"tick":       s.tickCount,
			"state":      s.safety.State().String(),
			"action":     action,
		}
		if err := s.pub.PublishJSON("teleop.action", "ACTION", payload); err != nil {
			s.logger.Debugf("Action publish failed: %v", err)
		}
	}
}

func (s *Server) publishState() {
	if s.pub == nil {
		return
	}
	payload := map[string]interface{}{
		"session_id": s.sessionID,
		"episode":    s.episode,
		"tick":       s.tickCount,
		"state":      s.safety.State().String(),
	}
	if err := s.pub.PublishJSON("teleop.state", "STATE", payload); err != nil {
		s.logger.Debugf("State publish failed: %v", err)
	}
}

func (s *Server) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Shutdown releases loop-owned resources. Call it after the transport has
// been stopped and joined; recording is finalized before the actuation
// interface is torn down so no frames are lost.
func (s *Server) Shutdown() error {
	s.requestStop()
	if s.rec != nil {
		if err := s.rec.SaveData(); err != nil {
			s.logger.Errorf("Failed to finalize recording: %v", err)
		}
	}
	return s.env.Close()
}

// --- Snapshot accessors (safe from any goroutine) ---

// NumDOFs returns the environment's degree-of-freedom count.
func (s *Server) NumDOFs() int { return s.numDOFs }

// JointState returns a copy of the latest observed joint position snapshot.
func (s *Server) JointState() []float64 {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	out := make([]float64, len(s.jointState))
	copy(out, s.jointState)
	return out
}

// Observations returns the latest structured observation snapshot.
func (s *Server) Observations() map[string]interface{} {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return s.obs
}

// Status returns the latest loop status snapshot.
func (s *Server) Status() Status {
	s.obsMu.RLock()
	defer s.obsMu.RUnlock()
	return s.status
}

// CommandJointState writes a new raw command. On fixed-layout topologies the
// vector is split positionally and component is ignored; otherwise component
// (default: the active arm) selects the slot receiving the whole vector.
func (s *Server) CommandJointState(vec []float64, component string) error {
	if len(s.topo.Layout()) > 0 {
		return s.cmds.SetVector(vec)
	}
	if component == "" {
		component = s.activeArm + "_arm"
	}
	return s.cmds.SetComponent(Component(component), vec)
}

// FreedriveEnabled reports the compliance-mode flag. Always true in the
// baseline.
func (s *Server) FreedriveEnabled() bool { return true }

// SetFreedriveMode is accepted but has no effect in the baseline.
func (s *Server) SetFreedriveMode(bool) {}

// PushControlEvent enqueues a named control event from the transport.
func (s *Server) PushControlEvent(name string) error {
	ev, err := ParseControlEvent(name)
	if err != nil {
		return err
	}
	s.events.Push(ev)
	return nil
}

// SubscribeActions registers an observer of synthesized actions. The
// returned cancel func must be called to release the subscription. Slow
// observers miss frames rather than stalling the loop.
func (s *Server) SubscribeActions(buf int) (<-chan []float64, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan []float64, buf)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
	return ch, cancel
}
