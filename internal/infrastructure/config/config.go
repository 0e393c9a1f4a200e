package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Roomwall Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Media     MediaConfig     `yaml:"media"`
	Modules   ModulesConfig   `yaml:"modules"`
}

// SiteConfig contains room-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// EvictStalePort terminates any process still bound to the configured
	// port before binding. Handles unclean exits of a previous instance.
	EvictStalePort bool             `yaml:"evict_stale_port"`
	Timeouts       APITimeoutConfig `yaml:"timeouts"`
	CORS           CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket health-stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is optional; the core runs fully without it.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains health-history sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MediaConfig gates the media endpoint group.
// Playback itself belongs to the desktop shell; the core only serves files.
type MediaConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BasePath string `yaml:"base_path"`
}

// ModulesConfig contains per-device-family module settings.
type ModulesConfig struct {
	Display     DisplayConfig     `yaml:"display"`
	Camera      CameraConfig      `yaml:"camera"`
	Lighting    LightingConfig    `yaml:"lighting"`
	SystemAudio SystemAudioConfig `yaml:"system_audio"`
	Microphone  MicrophoneConfig  `yaml:"microphone"`
	Speaker     SpeakerConfig     `yaml:"speaker"`
	Biamp       BiampConfig       `yaml:"biamp"`
}

// DisplayConfig contains LED display wall settings.
type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
	// PollInterval is the health poll interval in seconds (1-5s observed).
	PollInterval int                  `yaml:"poll_interval"`
	Panels       []DisplayPanelConfig `yaml:"panels"`
}

// DisplayPanelConfig describes one display controller endpoint.
type DisplayPanelConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"` // host:port of the panel controller
}

// CameraConfig contains PTZ camera controller settings.
// The controller runs as a child process exposing a local HTTP API.
type CameraConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
	// Port is the local HTTP API port of the controller child process.
	Port int `yaml:"port"`
	// HealthInterval is the controller health poll interval in seconds.
	HealthInterval int `yaml:"health_interval"`
	// MaxRestartAttempts caps escalating restarts before the cameras are
	// marked permanently offline.
	MaxRestartAttempts  int    `yaml:"max_restart_attempts"`
	RestartDelaySeconds int    `yaml:"restart_delay_seconds"`
	MaxRestartDelaySecs int    `yaml:"max_restart_delay_seconds"`
	PIDFile             string `yaml:"pid_file"`
}

// LightingConfig contains DMX512 transmitter settings.
type LightingConfig struct {
	Enabled bool `yaml:"enabled"`
	// AdapterPath is the serial-like DMX adapter device path.
	AdapterPath string `yaml:"adapter_path"`
	// FrameRate is the continuous transmit rate in frames per second (25-30).
	FrameRate int             `yaml:"frame_rate"`
	Fixtures  []FixtureConfig `yaml:"fixtures"`
}

// FixtureConfig maps one fixture to a contiguous DMX channel range.
type FixtureConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// StartChannel is the first DMX channel of the fixture (1-512).
	StartChannel int `yaml:"start_channel"`
	// ChannelOrder is the per-fixture channel assignment, e.g. "rgbw" or "grb".
	ChannelOrder string `yaml:"channel_order"`
}

// SystemAudioConfig contains OS master-volume settings.
type SystemAudioConfig struct {
	Enabled bool `yaml:"enabled"`
	// MixerCommand is the external mixer binary (e.g. "pactl").
	MixerCommand string `yaml:"mixer_command"`
	PollInterval int    `yaml:"poll_interval"`
}

// AudioEndpointConfig describes one network/system audio endpoint.
type AudioEndpointConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// MixerName is the endpoint's name in the system mixer.
	MixerName string `yaml:"mixer_name"`
}

// MicrophoneConfig contains microphone endpoint settings.
type MicrophoneConfig struct {
	Enabled      bool                  `yaml:"enabled"`
	MixerCommand string                `yaml:"mixer_command"`
	PollInterval int                   `yaml:"poll_interval"`
	Endpoints    []AudioEndpointConfig `yaml:"endpoints"`
}

// SpeakerConfig contains speaker endpoint settings.
type SpeakerConfig struct {
	Enabled      bool                  `yaml:"enabled"`
	MixerCommand string                `yaml:"mixer_command"`
	PollInterval int                   `yaml:"poll_interval"`
	Endpoints    []AudioEndpointConfig `yaml:"endpoints"`
}

// BiampConfig contains conferencing DSP settings.
type BiampConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	PollInterval int    `yaml:"poll_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ROOMWALL_SECTION_KEY
// For example: ROOMWALL_DATABASE_PATH, ROOMWALL_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "room-001",
			Name:     "Roomwall",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/roomwall.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host:           "0.0.0.0",
			Port:           8081,
			EvictStalePort: true,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "roomwall-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Modules: ModulesConfig{
			Display: DisplayConfig{PollInterval: 5},
			Camera: CameraConfig{
				Port:                9790,
				HealthInterval:      5,
				MaxRestartAttempts:  5,
				RestartDelaySeconds: 2,
				MaxRestartDelaySecs: 60,
			},
			Lighting:    LightingConfig{FrameRate: 30},
			SystemAudio: SystemAudioConfig{MixerCommand: "pactl", PollInterval: 5},
			Microphone:  MicrophoneConfig{MixerCommand: "pactl", PollInterval: 5},
			Speaker:     SpeakerConfig{MixerCommand: "pactl", PollInterval: 5},
			Biamp:       BiampConfig{Port: 23, PollInterval: 5},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ROOMWALL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ROOMWALL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("ROOMWALL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ROOMWALL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("ROOMWALL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROOMWALL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROOMWALL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ROOMWALL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// maxPort is the highest valid TCP port number.
const maxPort = 65535

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port <= 0 || c.API.Port > maxPort {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Media.Enabled && c.Media.BasePath == "" {
		errs = append(errs, "media.base_path is required when media is enabled")
	}

	if c.Modules.Camera.Enabled {
		if c.Modules.Camera.Binary == "" {
			errs = append(errs, "modules.camera.binary is required when camera is enabled")
		}
		if c.Modules.Camera.Port <= 0 || c.Modules.Camera.Port > maxPort {
			errs = append(errs, fmt.Sprintf("modules.camera.port %d is out of range", c.Modules.Camera.Port))
		}
	}

	if c.Modules.Lighting.Enabled {
		if c.Modules.Lighting.AdapterPath == "" {
			errs = append(errs, "modules.lighting.adapter_path is required when lighting is enabled")
		}
		if c.Modules.Lighting.FrameRate < 25 || c.Modules.Lighting.FrameRate > 30 {
			errs = append(errs, fmt.Sprintf("modules.lighting.frame_rate %d must be 25-30", c.Modules.Lighting.FrameRate))
		}
	}

	if c.Modules.Biamp.Enabled && c.Modules.Biamp.Host == "" {
		errs = append(errs, "modules.biamp.host is required when biamp is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
