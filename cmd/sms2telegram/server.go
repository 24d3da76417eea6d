package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tokyodaito/SMS2Telegram/internal/constants"
	"github.com/tokyodaito/SMS2Telegram/internal/metrics"
	"github.com/tokyodaito/SMS2Telegram/internal/models"
	"github.com/tokyodaito/SMS2Telegram/internal/service"
	"github.com/tokyodaito/SMS2Telegram/internal/store"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the local status and intake HTTP surface. It is the stand-in
// for the platform event sources: callers post device events and call
// transitions here, and the settings panel drives pairing and test sends
// through it.
type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	forwarder *service.EventForwarder
	tracker   *service.CallStateTracker
	pairing   *service.PairingCoordinator
	queue     service.DeliveryQueue
	checker   *service.ConnectionChecker
	store     *store.Store
	config    models.ServerConfig
	server    *http.Server
}

func NewServer(cfg models.ServerConfig, forwarder *service.EventForwarder, tracker *service.CallStateTracker, pairing *service.PairingCoordinator, queue service.DeliveryQueue, checker *service.ConnectionChecker, st *store.Store, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		forwarder: forwarder,
		tracker:   tracker,
		pairing:   pairing,
		queue:     queue,
		checker:   checker,
		store:     st,
		config:    cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Event intake
	s.router.HandleFunc("/events", s.handleEvent()).Methods(http.MethodPost)
	s.router.HandleFunc("/call-state", s.handleCallState()).Methods(http.MethodPost)

	// Settings panel actions
	s.router.HandleFunc("/sync", s.handleSync()).Methods(http.MethodPost)
	s.router.HandleFunc("/sim-numbers", s.handleSimNumber()).Methods(http.MethodPost)
	s.router.HandleFunc("/send-test", s.handleSendTest()).Methods(http.MethodPost)
	s.router.HandleFunc("/connection-check", s.handleConnectionCheck()).Methods(http.MethodPost)

	// Pairing
	pairing := s.router.PathPrefix("/pairing").Subrouter()
	pairing.HandleFunc("", s.handlePairingStatus()).Methods(http.MethodGet)
	pairing.HandleFunc("/start", s.handlePairingStart()).Methods(http.MethodPost)
	pairing.HandleFunc("/cancel", s.handlePairingCancel()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	port := s.config.Port
	if port == 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// handleStatus reports the sync flag, per-event switches, linked recipients
// and the last credential check in one document.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		syncEnabled, err := s.store.SyncEnabled(ctx)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		events, err := s.store.EventStatus(ctx)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		recipients, err := s.store.LinkedRecipients(ctx)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		connection, err := s.store.ConnectionStatus(ctx)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		simNumbers := make([]string, 2)
		for slot := range simNumbers {
			number, err := s.store.SimNumber(ctx, slot)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			simNumbers[slot] = number
		}

		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"syncEnabled": syncEnabled,
			"events":      events,
			"recipients":  recipients,
			"connection":  connection,
			"simNumbers":  simNumbers,
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		s.writeJSON(w, http.StatusOK, metrics.GetRegistry().Snapshot())
	}
}

// handleEvent accepts one device event and hands it to the forwarder. The
// forwarder may still drop it (sync off, kind disabled, debounced); intake
// acceptance only means the event was well-formed.
func (s *Server) handleEvent() http.HandlerFunc {
	type request struct {
		Kind  string `json:"kind"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		kind, ok := models.ParseEventKind(req.Kind)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown event kind %q", req.Kind), http.StatusBadRequest)
			return
		}

		s.forwarder.Forward(r.Context(), models.Event{
			Kind:  kind,
			Title: req.Title,
			Body:  req.Body,
		})
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleCallState() http.HandlerFunc {
	type request struct {
		State          string `json:"state"`
		IncomingNumber string `json:"incomingNumber"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		state, ok := models.ParseCallState(req.State)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown call state %q", req.State), http.StatusBadRequest)
			return
		}

		if err := s.tracker.HandleTransition(r.Context(), state, req.IncomingNumber); err != nil {
			s.logger.WithError(err).Error("Failed to apply call transition")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleSync() http.HandlerFunc {
	type request struct {
		Enabled bool `json:"enabled"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.store.SetSyncEnabled(r.Context(), req.Enabled); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"syncEnabled": req.Enabled})
	}
}

func (s *Server) handleSimNumber() http.HandlerFunc {
	type request struct {
		Slot   int    `json:"slot"`
		Number string `json:"number"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.store.SetSimNumber(r.Context(), req.Slot, req.Number); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleSendTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.queue.Enqueue(r.Context(), "[SMS2Telegram] Test message from settings panel")
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleConnectionCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.checker.Check(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to persist connection status")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) handlePairingStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.pairing.Session(r.Context())
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"active":    session.Active,
			"expiresAt": session.ExpiresAt,
		})
	}
}

func (s *Server) handlePairingStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, err := s.pairing.Start(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to start pairing session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"code": code})
	}
}

func (s *Server) handlePairingCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.pairing.Cancel(r.Context()); err != nil {
			s.logger.WithError(err).Error("Failed to cancel pairing session")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}
