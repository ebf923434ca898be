package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MEKXH/reviewdesk/internal/approval"
	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/decision"
	"github.com/MEKXH/reviewdesk/internal/version"
	"github.com/google/uuid"
)

type Server struct {
	cfg        config.SandboxConfig
	svc        *Service
	httpServer *http.Server
}

func New(cfg config.SandboxConfig, svc *Service) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18791
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg: cfg,
		svc: svc,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           NewHandler(s.cfg.Token, s.svc),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("sandbox api listening", "addr", s.httpServer.Addr, "store", s.svc.store.Path())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// NewHandler serves the pipeline API routes backed by svc. When token is set,
// /api routes require it as a bearer token.
func NewHandler(token string, svc *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": getRequestID(r),
		})
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"commit":     version.Commit,
			"request_id": getRequestID(r),
		})
	})

	api := http.NewServeMux()
	api.HandleFunc("GET /api/approvals", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := approval.Query{
			Status:       approval.Status(strings.TrimSpace(q.Get("status"))),
			PipelineStep: q.Get("pipeline_step"),
			JobID:        q.Get("job_id"),
		}
		if query.Status != "" && !query.Status.Valid() {
			writeError(w, getRequestID(r), http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("unknown status %q", query.Status))
			return
		}
		list, err := svc.List(query)
		if err != nil {
			writeServiceError(w, r, "list approvals", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	api.HandleFunc("GET /api/approvals/{id}", func(w http.ResponseWriter, r *http.Request) {
		req, err := svc.Get(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, "get approval", err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	})
	api.HandleFunc("POST /api/approvals/{id}/decide", func(w http.ResponseWriter, r *http.Request) {
		var body decision.Request
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, getRequestID(r), http.StatusBadRequest, CodeBadRequest, "invalid json request")
			return
		}
		decided, err := svc.Decide(r.PathValue("id"), body)
		if err != nil {
			writeServiceError(w, r, "decide", err)
			return
		}
		slog.Info("sandbox decision applied", "approval_id", decided.ID, "decision", body.Decision, "reviewer", decided.ReviewedBy)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": decided.Status})
	})
	api.HandleFunc("POST /api/approvals/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.Retry(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, "retry", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID})
	})
	api.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.JobStatus(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, "job status", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
	api.HandleFunc("POST /api/jobs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cancel(r.PathValue("id")); err != nil {
			writeServiceError(w, r, "cancel", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	mux.Handle("/api/", requireToken(token, api))
	return mux
}

func requireToken(token string, next http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && !isAuthorized(r, token) {
			writeError(w, getRequestID(r), http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	requestID := getRequestID(r)

	var conflict *approval.ConflictError
	var validation *approval.ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, requestID, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":       "not_pending",
			"message":    conflict.Error(),
			"status":     conflict.Status,
			"request_id": requestID,
		})
	case errors.As(err, &validation):
		writeError(w, requestID, http.StatusUnprocessableEntity, validation.Code, validation.Message)
	default:
		slog.Error("sandbox request failed", "op", op, "request_id", requestID, "error", err)
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to "+op)
	}
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
