package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTempConfig writes a config file to a temp dir and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "site:\n  id: room-test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Site.ID != "room-test" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "room-test")
	}
	if cfg.API.Port != 8081 {
		t.Errorf("API.Port = %d, want 8081", cfg.API.Port)
	}
	if !cfg.API.EvictStalePort {
		t.Error("API.EvictStalePort = false, want true")
	}
	if cfg.Modules.Lighting.FrameRate != 30 {
		t.Errorf("Lighting.FrameRate = %d, want 30", cfg.Modules.Lighting.FrameRate)
	}
	if cfg.Modules.Camera.MaxRestartAttempts != 5 {
		t.Errorf("Camera.MaxRestartAttempts = %d, want 5", cfg.Modules.Camera.MaxRestartAttempts)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want false by default")
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeTempConfig(t, `
site:
  id: room-7
  name: Demo Room
api:
  port: 9000
modules:
  lighting:
    enabled: true
    adapter_path: /dev/ttyUSB0
    frame_rate: 25
    fixtures:
      - id: wash-1
        name: Wash Left
        start_channel: 1
        channel_order: rgbw
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if !cfg.Modules.Lighting.Enabled {
		t.Error("Lighting.Enabled = false, want true")
	}
	if len(cfg.Modules.Lighting.Fixtures) != 1 {
		t.Fatalf("Fixtures count = %d, want 1", len(cfg.Modules.Lighting.Fixtures))
	}
	if cfg.Modules.Lighting.Fixtures[0].ChannelOrder != "rgbw" {
		t.Errorf("ChannelOrder = %q, want %q", cfg.Modules.Lighting.Fixtures[0].ChannelOrder, "rgbw")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "site:\n  id: room-env\n")

	t.Setenv("ROOMWALL_API_PORT", "8123")
	t.Setenv("ROOMWALL_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.API.Port != 8123 {
		t.Errorf("API.Port = %d, want 8123 from env", cfg.API.Port)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name: "camera enabled without binary",
			mutate: func(c *Config) {
				c.Modules.Camera.Enabled = true
				c.Modules.Camera.Binary = ""
			},
			wantErr: "modules.camera.binary",
		},
		{
			name: "lighting frame rate out of band",
			mutate: func(c *Config) {
				c.Modules.Lighting.Enabled = true
				c.Modules.Lighting.AdapterPath = "/dev/ttyUSB0"
				c.Modules.Lighting.FrameRate = 60
			},
			wantErr: "frame_rate",
		},
		{
			name: "media enabled without base path",
			mutate: func(c *Config) {
				c.Media.Enabled = true
				c.Media.BasePath = ""
			},
			wantErr: "media.base_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
