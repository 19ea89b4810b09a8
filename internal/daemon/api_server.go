package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bindery/internal/api"
	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/logging"
	"bindery/internal/reconcile"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/catalog", srv.handleCatalog)
	mux.HandleFunc("/api/catalog/", srv.handleCatalogBook)
	mux.HandleFunc("/api/artifacts/", srv.handleArtifact)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/tasks", srv.handleTasks)
	mux.HandleFunc("/api/backends", srv.handleBackends)
	mux.HandleFunc("/api/reconcile", srv.handleReconcile)
	mux.Handle("/metrics", d.collector.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Conversions run inline in the artifact handler, so writes may
		// start only after a long convert finishes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		CatalogDBPath:  status.CatalogDBPath,
		ArtifactDBPath: status.ArtifactDBPath,
		LockFilePath:   status.LockFilePath,
		ReconcilePhase: string(status.ReconcilePhase),
		ActiveJobs:     status.ActiveJobs,
		LastReconcile:  api.FromReconcileSummary(status.LastReconcile),
		Dependencies:   api.FromDependencyStatuses(s.daemon.Dependencies(r.Context())),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	includeRemoved := queryFlag(r, "removed")
	books, err := s.daemon.Catalog().List(r.Context(), includeRemoved)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CatalogListResponse{Books: api.FromCatalogBooks(books)})
}

func (s *apiServer) handleCatalogBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/catalog/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "not_found", "book not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid book id")
		return
	}
	book, err := s.daemon.Catalog().Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if book == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "book not found")
		return
	}
	entries, err := s.daemon.Artifacts().List(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Book      api.Book       `json:"book"`
		Artifacts []api.Artifact `json:"artifacts"`
	}{
		Book:      api.FromCatalogBook(book),
		Artifacts: api.FromArtifactEntries(entries),
	})
}

// handleArtifact serves the artifact bytes, converting on demand. Query
// parameters become variant parameters, so /api/artifacts/7/PDF?pages=3-5
// and the bare /api/artifacts/7/PDF are distinct cached artifacts.
func (s *apiServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "artifact not found")
		return
	}
	bookID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid book id")
		return
	}
	format := parts[1]

	var params map[string]string
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[key] = values[0]
	}

	entry, err := s.daemon.Coordinator().RequestArtifact(r.Context(), bookID, format, params)
	if err != nil {
		s.writeConversionError(w, err)
		return
	}
	http.ServeFile(w, r, entry.Path)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	jobs := s.daemon.Coordinator().Jobs()
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobViews(jobs)})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tasks := s.daemon.Scheduler().Snapshot()
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: api.FromTaskStatuses(tasks)})
}

func (s *apiServer) handleBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	descs := s.daemon.Backends().Descriptors(r.Context())
	s.writeJSON(w, http.StatusOK, api.BackendListResponse{Backends: api.FromBackendDescriptors(descs)})
}

func (s *apiServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	err := s.daemon.TriggerReconcile(r.Context())
	if errors.Is(err, reconcile.ErrBusy) {
		s.writeJSON(w, http.StatusConflict, api.ReconcileResponse{Status: api.ReconcileBusy})
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.ReconcileResponse{Status: api.ReconcileAccepted})
}

// writeConversionError maps coordinator errors onto structured JSON errors.
func (s *apiServer) writeConversionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, convert.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, convert.ErrUnsupportedFormat):
		s.writeError(w, http.StatusUnprocessableEntity, "unsupported_format", err.Error())
	case errors.Is(err, convert.ErrSourceUnavailable):
		s.writeError(w, http.StatusConflict, "source_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusRequestTimeout, "request_cancelled", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "conversion_failed", err.Error())
	}
}

func queryFlag(r *http.Request, name string) bool {
	value := r.URL.Query().Get(name)
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.WithComponent(s.logger, "api-server")
	}
	return logging.NewNop()
}
