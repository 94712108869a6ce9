package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/oakmere/wallcal/internal/store"
	"github.com/oakmere/wallcal/pkg/models"
)

func (s *Service) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response body", "error", err)
	}
}

// yearFromPath extracts the year from /api/data/{year}.
func yearFromPath(path string) (int, bool) {
	rest := strings.TrimPrefix(path, "/api/data/")
	if rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	year, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return year, true
}

// dataHandler serves /api/data/{year}: unauthenticated reads, admin-gated
// writes.
func (s *Service) dataHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := yearFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getDataHandler(w, r, year)
	case http.MethodPost:
		s.requireAdmin(func(w http.ResponseWriter, r *http.Request) {
			s.saveDataHandler(w, r, year)
		})(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getDataHandler returns the persisted document for a year. A year that was
// never written (or whose record cannot be decoded) yields the empty
// skeleton, never an error.
func (s *Service) getDataHandler(w http.ResponseWriter, _ *http.Request, year int) {
	doc, err := s.store.Read(year)
	if err != nil {
		if !store.IsErrNotFound(err) {
			s.logger.Error("Failed to read document, serving skeleton", "year", year, "error", err)
		}
		s.respondJSON(w, http.StatusOK, models.EmptyCalendarDocument())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

// configHandler serves /api/config: unauthenticated reads of the current
// configuration, admin-gated replacement.
func (s *Service) configHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getConfigHandler(w, r)
	case http.MethodPost:
		s.requireAdmin(s.saveConfigHandler)(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) getConfigHandler(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.store.ReadConfig()
	if err != nil {
		// No stored configuration: fall back to the environment-derived
		// presentation defaults.
		cfg = s.defaultConfiguration()
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Service) defaultConfiguration() *models.Configuration {
	cfg := &models.Configuration{
		Timezone: s.cfg.Presentation.Timezone,
	}
	if s.cfg.Presentation.HeaderName != "" {
		name := s.cfg.Presentation.HeaderName
		cfg.HeaderName = &name
	}
	if s.cfg.Presentation.BannerHTML != "" {
		banner := s.cfg.Presentation.BannerHTML
		cfg.BannerHTML = &banner
	}
	return cfg
}
