package mixer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// commandTimeout bounds every mixer invocation. The mixer is a local
// binary; anything slower than this means the audio stack is wedged.
const commandTimeout = 3 * time.Second

// defaultCommand is used when configuration leaves the binary empty.
const defaultCommand = "pactl"

// ErrEndpointNotFound indicates the mixer does not know the endpoint.
var ErrEndpointNotFound = errors.New("mixer: endpoint not found")

// Kind selects the mixer object class an endpoint belongs to.
type Kind string

const (
	KindSink   Kind = "sink"
	KindSource Kind = "source"
)

// Mixer reads and writes endpoint volume and mute state.
// Implementations must be safe for concurrent use.
type Mixer interface {
	// Volume returns the endpoint volume in percent (0-100+).
	Volume(ctx context.Context, kind Kind, endpoint string) (int, error)

	// SetVolume sets the endpoint volume in percent.
	SetVolume(ctx context.Context, kind Kind, endpoint string, percent int) error

	// Muted returns the endpoint mute state.
	Muted(ctx context.Context, kind Kind, endpoint string) (bool, error)

	// SetMuted sets the endpoint mute state.
	SetMuted(ctx context.Context, kind Kind, endpoint string, muted bool) error

	// Check verifies the mixer backend responds at all.
	Check(ctx context.Context) error
}

// ExecMixer drives a pactl-compatible binary.
type ExecMixer struct {
	command string
}

// NewExecMixer creates a mixer around the given binary, defaulting to
// pactl when empty.
func NewExecMixer(command string) *ExecMixer {
	if command == "" {
		command = defaultCommand
	}
	return &ExecMixer{command: command}
}

// volumeRe extracts the first percentage from pactl volume output.
var volumeRe = regexp.MustCompile(`(\d+)%`)

// Volume returns the endpoint's current volume percentage.
func (m *ExecMixer) Volume(ctx context.Context, kind Kind, endpoint string) (int, error) {
	out, err := m.run(ctx, "get-"+string(kind)+"-volume", target(kind, endpoint))
	if err != nil {
		return 0, err
	}

	match := volumeRe.FindStringSubmatch(out)
	if match == nil {
		return 0, fmt.Errorf("mixer: no volume in output %q", strings.TrimSpace(out))
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("mixer: parsing volume: %w", err)
	}
	return percent, nil
}

// SetVolume sets the endpoint volume. Percentages clamp at zero; values
// above 100 pass through since some deployments run boosted sinks.
func (m *ExecMixer) SetVolume(ctx context.Context, kind Kind, endpoint string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	_, err := m.run(ctx, "set-"+string(kind)+"-volume", target(kind, endpoint), fmt.Sprintf("%d%%", percent))
	return err
}

// Muted returns the endpoint's mute state.
func (m *ExecMixer) Muted(ctx context.Context, kind Kind, endpoint string) (bool, error) {
	out, err := m.run(ctx, "get-"+string(kind)+"-mute", target(kind, endpoint))
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "yes"), nil
}

// SetMuted sets the endpoint's mute state.
func (m *ExecMixer) SetMuted(ctx context.Context, kind Kind, endpoint string, muted bool) error {
	arg := "0"
	if muted {
		arg = "1"
	}
	_, err := m.run(ctx, "set-"+string(kind)+"-mute", target(kind, endpoint), arg)
	return err
}

// Check runs a cheap info query to verify the mixer answers.
func (m *ExecMixer) Check(ctx context.Context) error {
	_, err := m.run(ctx, "info")
	return err
}

// run executes one mixer command under the bounded timeout.
func (m *ExecMixer) run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, m.command, args...).CombinedOutput()
	if err != nil {
		text := strings.TrimSpace(string(out))
		if strings.Contains(text, "No such entity") || strings.Contains(text, "does not exist") {
			return "", fmt.Errorf("%w: %s", ErrEndpointNotFound, args[len(args)-1])
		}
		return "", fmt.Errorf("mixer: %s %s: %v (%s)", m.command, strings.Join(args, " "), err, text)
	}
	return string(out), nil
}

// target maps the empty endpoint to the mixer's default object.
func target(kind Kind, endpoint string) string {
	if endpoint != "" {
		return endpoint
	}
	if kind == KindSource {
		return "@DEFAULT_SOURCE@"
	}
	return "@DEFAULT_SINK@"
}
