package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Trunk control modes. Only the integrated mode is implemented: the trunk
// command is treated as a rate and integrated into a translate value each tick.
const (
	TrunkControlIntegrated = "integrated"
)

// Supported robot topologies.
const (
	TopologyDualArmMobile = "dual_arm_mobile"
	TopologySingleArm     = "single_arm"
)

// Config represents the server configuration loaded from server_config.yaml
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	ZeroMQ    ZeroMQConfig    `yaml:"zeromq" json:"zeromq"`
	Robot     RobotConfig     `yaml:"robot" json:"robot"`
	Recording RecordingConfig `yaml:"recording" json:"recording"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" json:"http_port"`
}

// ZeroMQConfig holds ZeroMQ-specific configuration
type ZeroMQConfig struct {
	RequestBindAddress string `yaml:"request_bind_address" json:"request_bind_address"`
	PublishBindAddress string `yaml:"publish_bind_address" json:"publish_bind_address"`
}

// RobotConfig holds the robot topology and control loop settings
type RobotConfig struct {
	Topology string `yaml:"topology" json:"topology"`
	// TickRateHz is the fixed control loop rate.
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	// CooldownSecs is how long arm motion stays speed-clamped after a resume.
	CooldownSecs float64 `yaml:"cooldown_secs" json:"cooldown_secs"`
	// CooldownMaxJointSpeedDegS bounds per-joint angular speed during cooldown,
	// in degrees per second.
	CooldownMaxJointSpeedDegS float64 `yaml:"cooldown_max_joint_speed_deg_s" json:"cooldown_max_joint_speed_deg_s"`
	// DefaultTrunkTranslate is the trunk translate value restored on reset,
	// in [0.0, 2.0].
	DefaultTrunkTranslate float64 `yaml:"default_trunk_translate" json:"default_trunk_translate"`
	TrunkControlMode      string  `yaml:"trunk_control_mode" json:"trunk_control_mode"`
	// ActiveArm selects which arm receives unrouted commands on
	// single-arm topologies.
	ActiveArm string `yaml:"active_arm" json:"active_arm"`
	// SingleArmDim is the per-arm joint count for the single_arm topology.
	SingleArmDim int `yaml:"single_arm_dim" json:"single_arm_dim"`
}

// RecordingConfig holds episode recording settings
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	// AutoCheckpoint enables both periodic and goal-driven checkpoints.
	AutoCheckpoint bool `yaml:"auto_checkpoint" json:"auto_checkpoint"`
	// CheckpointIntervalTicks is the periodic checkpoint period; a checkpoint
	// is requested once every this many applied ticks.
	CheckpointIntervalTicks int `yaml:"checkpoint_interval_ticks" json:"checkpoint_interval_ticks"`
}

// LoadConfig loads configuration from the specified file path, applies
// defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Robot.Topology == "" {
		c.Robot.Topology = TopologyDualArmMobile
	}
	if c.Robot.TickRateHz == 0 {
		c.Robot.TickRateHz = 30
	}
	if c.Robot.CooldownSecs == 0 {
		c.Robot.CooldownSecs = 3.0
	}
	if c.Robot.CooldownMaxJointSpeedDegS == 0 {
		c.Robot.CooldownMaxJointSpeedDegS = 30.0
	}
	if c.Robot.TrunkControlMode == "" {
		c.Robot.TrunkControlMode = TrunkControlIntegrated
	}
	if c.Robot.ActiveArm == "" {
		c.Robot.ActiveArm = "right"
	}
	if c.Robot.SingleArmDim == 0 {
		c.Robot.SingleArmDim = 7
	}
	if c.Recording.CheckpointIntervalTicks == 0 {
		c.Recording.CheckpointIntervalTicks = 600
	}
}

// Validate checks the configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if c.ZeroMQ.RequestBindAddress == "" {
		return fmt.Errorf("missing required field: zeromq.request_bind_address")
	}
	if c.ZeroMQ.PublishBindAddress == "" {
		return fmt.Errorf("missing required field: zeromq.publish_bind_address")
	}
	switch c.Robot.Topology {
	case TopologyDualArmMobile, TopologySingleArm:
	default:
		return fmt.Errorf("unsupported robot topology: %q", c.Robot.Topology)
	}
	if c.Robot.TrunkControlMode != TrunkControlIntegrated {
		return fmt.Errorf("unsupported trunk control mode: %q (only %q is supported)",
			c.Robot.TrunkControlMode, TrunkControlIntegrated)
	}
	if c.Robot.TickRateHz < 1 {
		return fmt.Errorf("robot.tick_rate_hz must be >= 1, got %d", c.Robot.TickRateHz)
	}
	if c.Robot.CooldownSecs < 0 {
		return fmt.Errorf("robot.cooldown_secs must be >= 0, got %v", c.Robot.CooldownSecs)
	}
	if c.Robot.CooldownMaxJointSpeedDegS <= 0 {
		return fmt.Errorf("robot.cooldown_max_joint_speed_deg_s must be > 0, got %v",
			c.Robot.CooldownMaxJointSpeedDegS)
	}
	if c.Robot.DefaultTrunkTranslate < 0.0 || c.Robot.DefaultTrunkTranslate > 2.0 {
		return fmt.Errorf("robot.default_trunk_translate must be in [0.0, 2.0], got %v",
			c.Robot.DefaultTrunkTranslate)
	}
	if c.Robot.ActiveArm != "left" && c.Robot.ActiveArm != "right" {
		return fmt.Errorf("robot.active_arm must be \"left\" or \"right\", got %q", c.Robot.ActiveArm)
	}
	if c.Recording.Enabled && c.Recording.Path == "" {
		return fmt.Errorf("recording.path is required when recording is enabled")
	}
	if c.Recording.CheckpointIntervalTicks < 1 {
		return fmt.Errorf("recording.checkpoint_interval_ticks must be >= 1, got %d",
			c.Recording.CheckpointIntervalTicks)
	}
	return nil
}
