package api

import (
	"net/http"
)

// handleStatus serves GET /status and its /health alias: the system
// summary plus every module's derived view.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"version": s.version,
		"summary": s.healthS.Summary(),
		"modules": s.healthS.Views(),
	})
}

// handleAllDevices serves GET /devices: every device grouped by module
// name, read straight through the hardware manager.
func (s *Server) handleAllDevices(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.manager.AllDevices(r.Context()))
}

// handleDiagnosticRestart serves POST /diagnostics/{module}/restart.
func (s *Server) handleDiagnosticRestart(w http.ResponseWriter, r *http.Request) {
	name := routeParam(r, "module")
	writeData(w, http.StatusOK, s.healthS.RestartModule(r.Context(), name))
}

// handleDiagnosticRefresh serves POST /diagnostics/refresh.
func (s *Server) handleDiagnosticRefresh(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.healthS.ForceRefresh(r.Context()))
}

// handleDiagnosticTest serves GET /diagnostics/{module}/test.
func (s *Server) handleDiagnosticTest(w http.ResponseWriter, r *http.Request) {
	name := routeParam(r, "module")
	writeData(w, http.StatusOK, s.healthS.TestConnection(r.Context(), name))
}

// handleDiagnosticLogs serves GET /diagnostics/{module}/logs.
func (s *Server) handleDiagnosticLogs(w http.ResponseWriter, r *http.Request) {
	name := routeParam(r, "module")
	writeData(w, http.StatusOK, s.healthS.ExportLogs(name))
}
