package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"StockSentinel/internal/collector"
	"StockSentinel/internal/gate"
	"StockSentinel/internal/metrics"
	"StockSentinel/internal/store"
)

// seedDays is how much history /admin/initialize pulls per instrument.
const seedDays = 250

// StopControl clears the emergency-stop flag.
type StopControl interface {
	SetEmergencyStop(ctx context.Context, on bool) error
}

// Server exposes liveness, metrics, and a small set of operator endpoints.
type Server struct {
	Store     *store.Store
	Collector *collector.Collector
	Stop      StopControl
	Notifier  gate.Notifier
	Trigger   func()

	srv *http.Server
}

// New builds the admin server on the given listen address.
func New(addr string, st *store.Store, col *collector.Collector, stop StopControl, n gate.Notifier, trigger func()) *Server {
	s := &Server{
		Store:     st,
		Collector: col,
		Stop:      stop,
		Notifier:  n,
		Trigger:   trigger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/test/notify", s.handleTestNotify).Methods(http.MethodPost)
	r.HandleFunc("/admin/initialize", s.handleInitialize).Methods(http.MethodPost)
	r.HandleFunc("/admin/reset-stop", s.handleResetStop).Methods(http.MethodPost)
	r.HandleFunc("/admin/trigger", s.handleTrigger).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}
	return s
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] admin server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] admin server: %v", err)
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if r.URL.Query().Get("verbose") == "1" {
		detail, err := s.instrumentSummary(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["detail"] = detail
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		req.Text = "test notification"
	}
	if err := s.Notifier.SendAlert(r.Context(), req.Text); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleInitialize seeds historical daily series for every active
// instrument. Long-running: it paces provider fetches sequentially.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.Store.ActiveInstruments(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	seeded := map[string]int{}
	for _, inst := range instruments {
		bars, err := s.Collector.Series(r.Context(), inst, seedDays)
		if err != nil {
			metrics.FetchErrorsTotal.WithLabelValues(s.Collector.Primary.Name()).Inc()
			log.Printf("[ERROR] initialize %s: %v", inst.ID, err)
			continue
		}
		if err := s.Store.SaveBars(r.Context(), inst.ID, bars); err != nil {
			log.Printf("[ERROR] initialize save %s: %v", inst.ID, err)
			continue
		}
		seeded[inst.ID] = len(bars)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": seeded})
}

func (s *Server) handleResetStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Stop.SetEmergencyStop(r.Context(), false); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Println("[INFO] emergency stop cleared by operator")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	if s.Trigger == nil {
		http.Error(w, "trigger not configured", http.StatusServiceUnavailable)
		return
	}
	go s.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "data": "tick started"})
}

func (s *Server) instrumentSummary(ctx context.Context) (string, error) {
	instruments, err := s.Store.ActiveInstruments(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d active instruments", len(instruments)), nil
}
