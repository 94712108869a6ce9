package service

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
)

// rootHandler owns everything not under /api. Upgrade requests become
// realtime connections; anything else is served from the client build
// directory with an index.html fallback so the single-page app handles its
// own routing.
func (s *Service) rootHandler(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.hub.HandleUpgrade(w, r)
		return
	}

	if s.cfg.StaticDir == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	requested := filepath.Join(s.cfg.StaticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(requested); err == nil && !info.IsDir() &&
		strings.HasPrefix(requested, filepath.Clean(s.cfg.StaticDir)) {
		http.ServeFile(w, r, requested)
		return
	}

	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "index.html"))
}
