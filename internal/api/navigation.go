package api

import (
	"encoding/json"
	"net/http"
)

// navigateRequest is the POST /navigation/navigate body.
type navigateRequest struct {
	URL string `json:"url"`
}

// handleNavigate serves POST /navigation/navigate, forwarding to the
// shell's navigation callback.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if s.nav == nil {
		writeServiceUnavailable(w, "navigation is not available")
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.URL == "" {
		writeBadRequest(w, "url field is required")
		return
	}

	ok := s.nav.Navigate(req.URL)
	writeData(w, http.StatusOK, map[string]any{"navigated": ok, "url": req.URL})
}

// handleCurrentURL serves GET /navigation/current.
func (s *Server) handleCurrentURL(w http.ResponseWriter, _ *http.Request) {
	if s.nav == nil {
		writeServiceUnavailable(w, "navigation is not available")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": s.nav.CurrentURL()})
}
