package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// handleListMedia serves GET /media: the files available under the
// configured base path.
func (s *Server) handleListMedia(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.media.BasePath)
	if err != nil {
		writeInternalError(w, "reading media directory: "+err.Error())
		return
	}

	files := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, map[string]any{
			"name": entry.Name(),
			"size": info.Size(),
		})
	}
	writeData(w, http.StatusOK, files)
}

// handleServeMedia serves GET /media/{filename}. The filename is
// confined to the base path so traversal cannot escape it.
func (s *Server) handleServeMedia(w http.ResponseWriter, r *http.Request) {
	filename := routeParam(r, "filename")
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsRune(filename, os.PathSeparator) {
		writeBadRequest(w, "invalid filename")
		return
	}

	path := filepath.Join(s.media.BasePath, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeNotFound(w, "media file not found: "+filename)
		return
	}

	http.ServeFile(w, r, path)
}
