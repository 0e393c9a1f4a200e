package health

import (
	"context"
	"fmt"
	"time"
)

// restartPause is the settle time between shutdown and re-initialize.
const restartPause = time.Second

// RestartModule shuts the module down, waits briefly, then rebuilds and
// re-initializes it through the hardware manager. Best effort: the
// outcome comes back as a Result, never as a panic or error.
func (s *Service) RestartModule(ctx context.Context, name string) Result {
	s.logger.Info("diagnostic restart requested", "module", name)

	if err := s.source.Restart(ctx, name, restartPause); err != nil {
		s.logger.Warn("diagnostic restart failed", "module", name, "error", err)
		return Result{
			Success: false,
			Message: fmt.Sprintf("restart of %s failed: %v", name, err),
		}
	}

	// Refresh immediately so the view reflects the fresh instance.
	s.pollOnce(ctx)

	return Result{
		Success: true,
		Message: fmt.Sprintf("module %s restarted", name),
	}
}

// ForceRefresh runs one poll cycle synchronously.
func (s *Service) ForceRefresh(ctx context.Context) Result {
	s.pollOnce(ctx)
	return Result{
		Success: true,
		Message: "refresh complete",
		Data:    s.Summary(),
	}
}

// TestConnection reports the module's live healthy/total device ratio.
func (s *Service) TestConnection(ctx context.Context, name string) Result {
	s.pollOnce(ctx)

	view, ok := s.ModuleView(name)
	if !ok {
		return Result{
			Success: false,
			Message: fmt.Sprintf("unknown module: %s", name),
		}
	}
	if view.Overall == StatusNotImplemented {
		return Result{
			Success: false,
			Message: fmt.Sprintf("module %s is not implemented", name),
		}
	}

	return Result{
		Success: view.HealthyCount > 0 || view.DeviceCount == 0,
		Message: fmt.Sprintf("%d of %d devices healthy", view.HealthyCount, view.DeviceCount),
		Data: map[string]int{
			"healthy": view.HealthyCount,
			"total":   view.DeviceCount,
		},
	}
}

// ExportLogs returns the module's slice of recent health events.
func (s *Service) ExportLogs(name string) Result {
	view, ok := s.ModuleView(name)
	if !ok {
		return Result{
			Success: false,
			Message: fmt.Sprintf("unknown module: %s", name),
		}
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("%d events for %s", len(view.Events), name),
		Data:    view.Events,
	}
}
