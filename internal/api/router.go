package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomwall/roomwall-core/internal/module"
)

// buildRouter creates the HTTP router. The system, navigation and
// diagnostics groups are fixed; per-module groups exist only for the
// modules actually registered at the time the server starts, and each
// group's registration is panic-isolated so one buggy module cannot
// strip the surface for its siblings.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// System group, always present.
		r.Get("/status", s.handleStatus)
		r.Get("/health", s.handleStatus)
		r.Get("/devices", s.handleAllDevices)

		// Per-module groups for whatever is registered right now.
		for _, mod := range s.manager.Modules() {
			s.registerModuleGroup(r, mod)
		}

		// Diagnostics over the health service.
		r.Route("/diagnostics", func(r chi.Router) {
			r.Post("/refresh", s.handleDiagnosticRefresh)
			r.Route("/{module}", func(r chi.Router) {
				r.Post("/restart", s.handleDiagnosticRestart)
				r.Get("/test", s.handleDiagnosticTest)
				r.Get("/logs", s.handleDiagnosticLogs)
			})
		})

		// Navigation group, always present for the shell collaborator.
		r.Route("/navigation", func(r chi.Router) {
			r.Post("/navigate", s.handleNavigate)
			r.Get("/current", s.handleCurrentURL)
		})

		// Media group only when configured and enabled.
		if s.media.Enabled {
			r.Route("/media", func(r chi.Router) {
				r.Get("/", s.handleListMedia)
				r.Get("/{filename}", s.handleServeMedia)
			})
		}

		r.Get("/ws", s.handleWebSocket)
	})

	// Unknown paths get the error envelope, not chi's plain 404.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeBadRequest(w, fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path))
	})

	return r
}

// registerModuleGroup mounts one module's endpoint group, derived from
// the capabilities the module implements. A panic during registration
// is logged and only that module's routes are skipped.
func (s *Server) registerModuleGroup(r chi.Router, mod module.Module) {
	name := mod.Name()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("module route registration failed, skipping group",
				"module", name,
				"panic", rec,
			)
		}
	}()

	r.Route("/"+name, func(r chi.Router) {
		r.Get("/", s.handleModuleDevices(name))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleDeviceStatus(name))

			if _, ok := mod.(module.DeviceEnabler); ok {
				r.Put("/enable", s.handleDeviceEnable(name))
			}

			if provider, ok := mod.(module.PropertyProvider); ok {
				for propName, prop := range provider.Properties() {
					if prop.Get != nil {
						r.Get("/"+propName, s.handlePropertyGet(name, propName))
					}
					if prop.Set != nil {
						r.Put("/"+propName, s.handlePropertySet(name, propName))
					}
				}
			}
		})
	})

	s.logger.Debug("module routes registered", "module", name)
}
