package camerad

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/roomwall/roomwall-core/internal/infrastructure/config"
	"github.com/roomwall/roomwall-core/internal/process"
)

// Supervision defaults, used when the config leaves fields at zero.
const (
	defaultPort           = 9790
	defaultHealthInterval = 5 * time.Second
	defaultRestartDelay   = 5 * time.Second
	defaultMaxDelay       = 2 * time.Minute
	defaultMaxAttempts    = 5
)

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Controller owns the camera controller child process and the client
// used to reach it.
type Controller struct {
	cfg     config.CameraConfig
	logger  Logger
	client  *Client
	proc    *process.Manager
	pidFile string
}

// NewController wires the supervisor for the configured binary.
// OnExhausted fires when the restart budget runs out so the camera
// module can mark its devices permanently offline.
func NewController(cfg config.CameraConfig, onExhausted func()) *Controller {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	client := NewClient(port)

	procCfg := process.DefaultConfig("camera-controller", cfg.Binary, []string{
		"--port", strconv.Itoa(port),
	})
	procCfg.RestartDelay = secondsOr(cfg.RestartDelaySeconds, defaultRestartDelay)
	procCfg.MaxRestartDelay = secondsOr(cfg.MaxRestartDelaySecs, defaultMaxDelay)
	procCfg.MaxRestartAttempts = intOr(cfg.MaxRestartAttempts, defaultMaxAttempts)
	procCfg.HealthCheckInterval = secondsOr(cfg.HealthInterval, defaultHealthInterval)
	procCfg.HealthCheckFunc = client.Health
	procCfg.OnExhausted = onExhausted

	c := &Controller{
		cfg:     cfg,
		logger:  noopLogger{},
		client:  client,
		pidFile: cfg.PIDFile,
	}
	// Restarts spawn fresh PIDs, so the file follows every start.
	procCfg.OnStart = c.writePIDFile
	c.proc = process.NewManager(procCfg)
	return c
}

// SetLogger sets the logger for the controller and its process manager.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
	c.proc.SetLogger(logger)
}

// Client returns the relay client for the controller's HTTP API.
func (c *Controller) Client() *Client { return c.client }

// Start reaps any orphaned controller from a previous run, launches the
// child and records its PID.
func (c *Controller) Start(ctx context.Context) error {
	c.reapOrphan()

	if err := c.proc.Start(ctx); err != nil {
		return fmt.Errorf("camerad: starting controller: %w", err)
	}
	return nil
}

// Stop terminates the child and removes the PID file.
func (c *Controller) Stop() error {
	err := c.proc.Stop()
	if c.pidFile != "" {
		_ = os.Remove(c.pidFile) //nolint:errcheck // Best effort cleanup
	}
	return err
}

// Running reports whether the child process is alive.
func (c *Controller) Running() bool { return c.proc.IsRunning() }

// Exhausted reports whether the restart budget has run out.
func (c *Controller) Exhausted() bool { return c.proc.Exhausted() }

// Status returns the supervisor status.
func (c *Controller) Status() process.Status { return c.proc.Status() }

// Stats returns supervisor statistics.
func (c *Controller) Stats() process.Stats { return c.proc.Stats() }

// reapOrphan kills a controller left behind by an unclean exit. The PID
// file alone is not trusted: the process must still look like our
// binary before it is killed, otherwise a recycled PID would take down
// an innocent process.
func (c *Controller) reapOrphan() {
	if c.pidFile == "" {
		return
	}

	data, err := os.ReadFile(c.pidFile)
	if err != nil {
		return
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(c.pidFile) //nolint:errcheck // Corrupt file, discard
		return
	}

	if !c.looksLikeController(pid) {
		_ = os.Remove(c.pidFile) //nolint:errcheck // Stale entry
		return
	}

	c.logger.Warn("killing orphaned camera controller", "pid", pid)
	_ = syscall.Kill(pid, syscall.SIGKILL) //nolint:errcheck // Process may already be gone
	_ = os.Remove(c.pidFile)               //nolint:errcheck // Stale entry
}

// looksLikeController verifies the pid's cmdline references our binary.
func (c *Controller) looksLikeController(pid int) bool {
	cmdline, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return false
	}
	return strings.Contains(string(cmdline), c.cfg.Binary)
}

func (c *Controller) writePIDFile() {
	if c.pidFile == "" {
		return
	}

	pid := c.proc.PID()
	if pid <= 0 {
		return
	}
	if err := os.WriteFile(c.pidFile, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		c.logger.Warn("failed to write controller pid file", "path", c.pidFile, "error", err)
	}
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func intOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
