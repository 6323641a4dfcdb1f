package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server_config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configContent := `
logging:
  level: "debug"
  log_path: "logs"

server:
  http_port: 9090

zeromq:
  request_bind_address: "tcp://*:5555"
  publish_bind_address: "tcp://*:5556"

robot:
  topology: "dual_arm_mobile"
  tick_rate_hz: 60
  cooldown_secs: 2.5
  cooldown_max_joint_speed_deg_s: 45.0
  default_trunk_translate: 1.25
  trunk_control_mode: "integrated"
  active_arm: "left"

recording:
  enabled: true
  path: "data/episode.jsonl"
  auto_checkpoint: true
  checkpoint_interval_ticks: 300
`
	cfg, err := LoadConfig(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.ZeroMQ.RequestBindAddress != "tcp://*:5555" {
		t.Errorf("Unexpected request bind address: %s", cfg.ZeroMQ.RequestBindAddress)
	}
	if cfg.Robot.TickRateHz != 60 {
		t.Errorf("Expected 60 Hz, got %d", cfg.Robot.TickRateHz)
	}
	if cfg.Robot.CooldownSecs != 2.5 {
		t.Errorf("Expected 2.5s cooldown, got %v", cfg.Robot.CooldownSecs)
	}
	if cfg.Robot.ActiveArm != "left" {
		t.Errorf("Expected left active arm, got %s", cfg.Robot.ActiveArm)
	}
	if !cfg.Recording.Enabled || cfg.Recording.CheckpointIntervalTicks != 300 {
		t.Errorf("Unexpected recording config: %+v", cfg.Recording)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	configContent := `
zeromq:
  request_bind_address: "tcp://*:5555"
  publish_bind_address: "tcp://*:5556"
`
	cfg, err := LoadConfig(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Robot.Topology != TopologyDualArmMobile {
		t.Errorf("Expected default topology, got %s", cfg.Robot.Topology)
	}
	if cfg.Robot.TickRateHz != 30 {
		t.Errorf("Expected default 30 Hz, got %d", cfg.Robot.TickRateHz)
	}
	if cfg.Robot.CooldownSecs != 3.0 {
		t.Errorf("Expected default 3s cooldown, got %v", cfg.Robot.CooldownSecs)
	}
	if cfg.Robot.CooldownMaxJointSpeedDegS != 30.0 {
		t.Errorf("Expected default 30 deg/s, got %v", cfg.Robot.CooldownMaxJointSpeedDegS)
	}
	if cfg.Robot.TrunkControlMode != TrunkControlIntegrated {
		t.Errorf("Expected default trunk mode, got %s", cfg.Robot.TrunkControlMode)
	}
	if cfg.Robot.ActiveArm != "right" {
		t.Errorf("Expected default right active arm, got %s", cfg.Robot.ActiveArm)
	}
	if cfg.Robot.SingleArmDim != 7 {
		t.Errorf("Expected default single arm dim 7, got %d", cfg.Robot.SingleArmDim)
	}
	if cfg.Recording.CheckpointIntervalTicks != 600 {
		t.Errorf("Expected default 600 tick interval, got %d", cfg.Recording.CheckpointIntervalTicks)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !strings.Contains(err.Error(), "error reading config file") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "robot: [unbalanced"))
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() string {
		return `
zeromq:
  request_bind_address: "tcp://*:5555"
  publish_bind_address: "tcp://*:5556"
`
	}

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing request address",
			content: `
zeromq:
  publish_bind_address: "tcp://*:5556"
`,
			wantErr: "request_bind_address",
		},
		{
			name: "missing publish address",
			content: `
zeromq:
  request_bind_address: "tcp://*:5555"
`,
			wantErr: "publish_bind_address",
		},
		{
			name:    "unknown topology",
			content: base() + "robot:\n  topology: \"hexapod\"\n",
			wantErr: "unsupported robot topology",
		},
		{
			name:    "unknown trunk mode",
			content: base() + "robot:\n  trunk_control_mode: \"direct\"\n",
			wantErr: "unsupported trunk control mode",
		},
		{
			name:    "bad active arm",
			content: base() + "robot:\n  active_arm: \"middle\"\n",
			wantErr: "active_arm",
		},
		{
			name:    "trunk translate out of range",
			content: base() + "robot:\n  default_trunk_translate: 2.5\n",
			wantErr: "default_trunk_translate",
		},
		{
			name:    "recording without path",
			content: base() + "recording:\n  enabled: true\n",
			wantErr: "recording.path",
		},
		{
			name:    "negative cooldown",
			content: base() + "robot:\n  cooldown_secs: -1\n",
			wantErr: "cooldown_secs",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tc.wantErr, err)
			}
		})
	}
}
