package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oakmere/wallcal/internal/session"
	"github.com/oakmere/wallcal/pkg/models"
)

func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	token, err := s.sessions.Authenticate(req.Password)
	if err != nil {
		if !errors.Is(err, session.ErrBadCredentials) {
			s.logger.Error("Authentication error", "error", err)
		}
		s.respondJSON(w, http.StatusUnauthorized, models.LoginResponse{Role: models.RoleView, Token: nil})
		return
	}

	s.respondJSON(w, http.StatusOK, models.LoginResponse{Role: models.RoleAdmin, Token: &token})
}

// saveDataHandler persists a full replacement document for a year and fans
// the new state out to every open connection before answering the writer,
// so both observe the same persisted state.
func (s *Service) saveDataHandler(w http.ResponseWriter, r *http.Request, year int) {
	defer r.Body.Close()
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("Could not read body for save request", "year", year, "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var doc models.CalendarDocument
	if err := json.Unmarshal(bodyBytes, &doc); err != nil {
		http.Error(w, "Invalid data structure.", http.StatusBadRequest)
		return
	}

	if err := s.store.Write(year, &doc); err != nil {
		var invalid *models.ErrInvalidDocument
		if errors.As(err, &invalid) {
			s.logger.Warn("Rejected structurally invalid document", "year", year, "reason", invalid.Reason)
			http.Error(w, "Invalid data structure.", http.StatusBadRequest)
			return
		}
		s.logger.Error("Failed to persist document", "year", year, "error", err)
		http.Error(w, "Error saving data.", http.StatusInternalServerError)
		return
	}

	s.hub.NotifyData(year, &doc)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Data saved successfully."))
}

// saveConfigHandler replaces the configuration document wholesale and
// broadcasts the new configuration.
func (s *Service) saveConfigHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var cfg models.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if cfg.Timezone == "" {
		cfg.Timezone = s.cfg.Presentation.Timezone
	}

	if err := s.store.WriteConfig(&cfg); err != nil {
		s.logger.Error("Failed to persist configuration", "error", err)
		http.Error(w, "Error saving configuration.", http.StatusInternalServerError)
		return
	}

	s.hub.NotifyConfig(&cfg)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Configuration saved successfully."))
}
