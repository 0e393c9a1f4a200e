package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomwall/roomwall-core/internal/module"
)

// routeParam reads a chi URL parameter.
func routeParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// liveModule resolves the module at request time. Routes are mounted at
// startup but instances can be swapped by a restart, so handlers never
// hold a module reference across requests.
func (s *Server) liveModule(w http.ResponseWriter, name string) (module.Module, bool) {
	mod, ok := s.manager.Module(name)
	if !ok {
		writeServiceUnavailable(w, fmt.Sprintf("module %s is not available", name))
		return nil, false
	}
	return mod, true
}

// handleModuleDevices serves GET /{module}: the module's device list.
func (s *Server) handleModuleDevices(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := s.liveModule(w, name)
		if !ok {
			return
		}

		devices, err := mod.Devices(r.Context())
		if err != nil {
			writeInternalError(w, fmt.Sprintf("listing %s devices: %v", name, err))
			return
		}
		if devices == nil {
			devices = []module.DeviceInfo{}
		}
		writeData(w, http.StatusOK, devices)
	}
}

// handleDeviceStatus serves GET /{module}/{id}: one device's status.
func (s *Server) handleDeviceStatus(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := s.liveModule(w, name)
		if !ok {
			return
		}

		id := routeParam(r, "id")
		devices, err := mod.Devices(r.Context())
		if err != nil {
			writeInternalError(w, fmt.Sprintf("reading %s devices: %v", name, err))
			return
		}
		for _, dev := range devices {
			if dev.ID == id {
				writeData(w, http.StatusOK, dev)
				return
			}
		}
		writeNotFound(w, fmt.Sprintf("device %s not found in module %s", id, name))
	}
}

// enableRequest is the PUT /{module}/{id}/enable body.
type enableRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleDeviceEnable serves PUT /{module}/{id}/enable.
func (s *Server) handleDeviceEnable(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := s.liveModule(w, name)
		if !ok {
			return
		}

		enabler, ok := mod.(module.DeviceEnabler)
		if !ok {
			writeBadRequest(w, fmt.Sprintf("module %s does not support device enable", name))
			return
		}

		var req enableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Enabled == nil {
			writeBadRequest(w, "enabled field is required")
			return
		}

		id := routeParam(r, "id")
		if err := enabler.SetDeviceEnabled(r.Context(), id, *req.Enabled); err != nil {
			writeModuleError(w, name, id, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"id": id, "enabled": *req.Enabled})
	}
}

// handlePropertyGet serves GET /{module}/{id}/{property}.
func (s *Server) handlePropertyGet(name, propName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := s.liveModule(w, name)
		if !ok {
			return
		}

		prop, ok := lookupProperty(mod, propName)
		if !ok || prop.Get == nil {
			writeNotFound(w, fmt.Sprintf("property %s not available on module %s", propName, name))
			return
		}

		id := routeParam(r, "id")
		value, err := prop.Get(r.Context(), id)
		if err != nil {
			writeModuleError(w, name, id, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"id": id, propName: value})
	}
}

// handlePropertySet serves PUT /{module}/{id}/{property}.
func (s *Server) handlePropertySet(name, propName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod, ok := s.liveModule(w, name)
		if !ok {
			return
		}

		prop, ok := lookupProperty(mod, propName)
		if !ok || prop.Set == nil {
			writeNotFound(w, fmt.Sprintf("property %s not writable on module %s", propName, name))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeBadRequest(w, fmt.Sprintf("reading request body: %v", err))
			return
		}

		id := routeParam(r, "id")
		if err := prop.Set(r.Context(), id, payload); err != nil {
			writeModuleError(w, name, id, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"id": id, "updated": propName})
	}
}

// lookupProperty fetches a property from the module's live registry.
func lookupProperty(mod module.Module, propName string) (module.Property, bool) {
	provider, ok := mod.(module.PropertyProvider)
	if !ok {
		return module.Property{}, false
	}
	prop, ok := provider.Properties()[propName]
	return prop, ok
}

// writeModuleError maps module sentinel errors onto the envelope codes.
func writeModuleError(w http.ResponseWriter, moduleName, deviceID string, err error) {
	switch {
	case errors.Is(err, module.ErrDeviceNotFound):
		writeNotFound(w, fmt.Sprintf("device %s not found in module %s", deviceID, moduleName))
	case errors.Is(err, module.ErrNotSupported):
		writeBadRequest(w, err.Error())
	case errors.Is(err, module.ErrRetired), errors.Is(err, module.ErrNotInitialized):
		writeServiceUnavailable(w, fmt.Sprintf("module %s is not available: %v", moduleName, err))
	default:
		writeInternalError(w, err.Error())
	}
}
