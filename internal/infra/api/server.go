package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/repository"
)

// ProviderLister is the read side of the provider registry.
type ProviderLister interface {
	Configs() []model.ProviderConfig
	CandidatesFor(task model.TaskType) []string
}

// Server is the admin API: health, metrics, run status and provider listings.
type Server struct {
	runs      repository.RunStatusStore
	providers ProviderLister
	trigger   func(reason string)
	auth      *AuthManager
	log       *zerolog.Logger
}

// NewServer wires the handlers. trigger may be nil when runs cannot be started
// over HTTP (e.g. outside serve mode).
func NewServer(runs repository.RunStatusStore, providers ProviderLister, trigger func(reason string), auth *AuthManager, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{runs: runs, providers: providers, trigger: trigger, auth: auth, log: logger}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAdmin(s.auth, s.log), Timeout(10*time.Second))
		r.Get("/runs/{id}", s.getRun)
		r.Post("/runs", s.startRun)
		r.Get("/providers", s.listProviders)
	})
	return r
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.Get(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case err != nil:
		s.log.Error().Err(err).Str("run_id", id).Msg("load run status")
		writeError(w, http.StatusInternalServerError, "run status unavailable")
	default:
		writeJSON(w, http.StatusOK, runView{RunState: run, Counts: run.Counts(), Spent: model.FormatMicros(run.CommittedMicros)})
	}
}

type runView struct {
	*model.RunState
	Counts map[model.Outcome]int `json:"counts"`
	Spent  string                `json:"spent"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusNotImplemented, "runs can only be started in serve mode")
		return
	}
	s.trigger("api:" + Subject(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

type providerView struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Category string        `json:"category"`
	Enabled  bool          `json:"enabled"`
	Priority int           `json:"priority"`
	Model    string        `json:"model,omitempty"`
	Pricing  model.Pricing `json:"pricing"`
}

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	cfgs := s.providers.Configs()
	out := struct {
		Providers  []providerView              `json:"providers"`
		Candidates map[model.TaskType][]string `json:"candidates"`
	}{
		Providers:  make([]providerView, 0, len(cfgs)),
		Candidates: make(map[model.TaskType][]string, len(model.AllTaskTypes)),
	}
	for _, c := range cfgs {
		out.Providers = append(out.Providers, providerView{
			Name: c.Name, Kind: c.Kind, Category: string(c.Category), Enabled: c.Enabled,
			Priority: c.Priority, Model: c.Model, Pricing: c.Pricing,
		})
	}
	for _, t := range model.AllTaskTypes {
		names := s.providers.CandidatesFor(t)
		if names == nil {
			names = []string{}
		}
		out.Candidates[t] = names
	}
	writeJSON(w, http.StatusOK, out)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", port).Msg("admin api listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
