package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/k8ika0s/build-sequencer/internal/graph"
	"github.com/k8ika0s/build-sequencer/internal/sequencer"
)

// Handler returns the HTTP routes of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/plan", s.authorized(s.handlePlan))
	mux.HandleFunc("/statefiles", s.authorized(s.handleStateFiles))
	mux.Handle("/metrics", s.Metrics.Handler())
	return withGzip(mux)
}

func (s *Service) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Cfg.APIToken != "" {
			tok := r.Header.Get("X-Sequencer-Token")
			if tok == "" {
				tok = r.URL.Query().Get("token")
			}
			if tok != s.Cfg.APIToken {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
		}
		next(w, r)
	}
}

func (s *Service) handlePlan(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		snap, err := s.Plan(r.Context(), req)
		if err != nil {
			writeJSON(w, planStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	case http.MethodGet:
		snap, err := s.LastPlan()
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no plan"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) handleStateFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := s.WriteState(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// planStatus maps manifest errors to 400 and structural planning failures
// to 422.
func planStatus(err error) int {
	if errors.Is(err, ErrInvalidManifest) {
		return http.StatusBadRequest
	}
	if errors.Is(err, graph.ErrCycle) || errors.Is(err, sequencer.ErrDuplicateGuid) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves the HTTP API until SIGINT or SIGTERM.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv := &http.Server{Addr: s.Cfg.HTTPAddr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	s.Logger.Printf("starting sequencer on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
