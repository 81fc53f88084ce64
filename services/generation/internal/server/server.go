package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"creatorlab/internal/ratelimit"
	"creatorlab/internal/servicetoken"
	"creatorlab/internal/util"
	"creatorlab/pkg/completion"
	"creatorlab/pkg/domain"
	"creatorlab/services/generation/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                         *app.App
	InternalJWTKeyID            string
	InternalJWTPublicKeyPath    string
	InternalJWTVerifyPublicKeys map[string]string
	RedisAddr                   string
	RedisPassword               string
	RateLimitPerMinute          int
}

// Server exposes HTTP endpoints for the generation service.
type Server struct {
	app            *app.App
	internalVerify *servicetoken.Verifier
	genLimiter     *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	verifier, err := servicetoken.NewVerifierWithOptions(servicetoken.VerifierOptions{
		PublicKeyPath:      strings.TrimSpace(cfg.InternalJWTPublicKeyPath),
		VerifyPublicKeyMap: cfg.InternalJWTVerifyPublicKeys,
		DefaultKeyID:       cfg.InternalJWTKeyID,
		Audience:           "generation",
		AllowedIssuers:     []string{"crm-service"},
		Leeway:             servicetoken.DefaultLeeway,
	})
	if err != nil {
		return nil, err
	}
	s.internalVerify = verifier

	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = 30
	}
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "creatorlab:generation:ratelimit", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init generation limiter: %w", err)
		}
		s.genLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("generation", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/internal/generate/business-plan", s.withInternal(s.withGenLimit(s.handleGenerateBusinessPlan)))
	s.mux.Handle("/internal/generate/deliverable", s.withInternal(s.withGenLimit(s.handleGenerateDeliverable)))
	s.mux.Handle("/internal/documents/", s.withInternal(s.handleDocument))
	s.mux.Handle("/internal/jobs/", s.withInternal(s.handleJob))
	s.mux.Handle("/internal/checkpoints", s.withInternal(s.handleCheckpoints))
	s.mux.Handle("/internal/checkpoints/", s.withInternal(s.handleCheckpointByID))
	s.mux.Handle("/internal/budgets", s.withInternal(s.handleBudgets))
	s.mux.Handle("/internal/templates/", s.withInternal(s.handleTemplate))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.internalVerify == nil {
			writeError(w, http.StatusInternalServerError, "internal auth not configured")
			return
		}
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.internalVerify.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) withGenLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.genLimiter != nil && !s.genLimiter.Allow(util.ClientIP(r, nil)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

type generateRequest struct {
	ClientID    string `json:"clientId"`
	Month       int    `json:"month"`
	RequestedBy string `json:"requestedBy"`
}

func (s *Server) handleGenerateBusinessPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("sync") == "1" {
		doc, err := s.app.GenerateBusinessPlan(r.Context(), req.ClientID, req.RequestedBy)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}
	job, err := s.app.EnqueueGeneration(r.Context(), domain.DocBusinessPlan, req.ClientID, 0, req.RequestedBy)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGenerateDeliverable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req, ok := decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	if req.Month < 1 || req.Month > domain.ProgramMonths {
		writeError(w, http.StatusUnprocessableEntity, "month must be between 1 and 8")
		return
	}
	if r.URL.Query().Get("sync") == "1" {
		doc, err := s.app.GenerateDeliverable(r.Context(), req.ClientID, req.Month, req.RequestedBy)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}
	job, err := s.app.EnqueueGeneration(r.Context(), domain.DocDeliverable, req.ClientID, req.Month, req.RequestedBy)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "clientId is required")
		return req, false
	}
	return req, true
}

// /internal/documents/{id}, /internal/documents/{id}/download,
// /internal/documents/{id}/regenerate
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/documents/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		doc, err := s.app.GetDocument(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}
	switch parts[1] {
	case "download":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		url, err := s.app.DownloadURL(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case "regenerate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleRegenerate(w, r, id)
	default:
		notFound(w, "not found")
	}
}

type regenerateRequest struct {
	Sections      []string `json:"sections"`
	ChangedFields []string `json:"changedFields"`
	RequestedBy   string   `json:"requestedBy"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	var req regenerateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var (
		count int
		doc   domain.Document
		err   error
	)
	if len(req.Sections) == 0 && len(req.ChangedFields) > 0 {
		count, doc, err = s.app.RegenerateForProfileChange(r.Context(), id, req.ChangedFields, req.RequestedBy)
	} else {
		count, doc, err = s.app.RegenerateSections(r.Context(), id, req.Sections, req.RequestedBy)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"regenerated": count,
		"document":    doc,
	})
}

// /internal/jobs/{id}
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/internal/jobs/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	job, ok, err := s.app.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		notFound(w, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	views, err := s.app.ResumableCheckpoints(r.URL.Query().Get("clientId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": views,
		"count": len(views),
	})
}

// /internal/checkpoints/{jobId} or /internal/checkpoints/{jobId}/resume
func (s *Server) handleCheckpointByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/checkpoints/")
	parts := strings.SplitN(path, "/", 2)
	jobID := parts[0]
	if jobID == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 && parts[1] == "resume" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		doc, err := s.app.ResumeJob(r.Context(), jobID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}
	if len(parts) == 2 {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteCheckpoint(jobID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type createBudgetRequest struct {
	Period           string  `json:"period"`
	TokenLimit       int64   `json:"tokenLimit"`
	CostLimit        float64 `json:"costLimit"`
	AutoPauseAtLimit bool    `json:"autoPauseAtLimit"`
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		budgets, err := s.app.ActiveBudgets()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": budgets,
			"count": len(budgets),
		})
	case http.MethodPost:
		var req createBudgetRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		budget, err := s.app.CreateBudget(domain.BudgetPeriod(strings.ToLower(strings.TrimSpace(req.Period))), req.TokenLimit, req.CostLimit, req.AutoPauseAtLimit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, budget)
	default:
		methodNotAllowed(w)
	}
}

// /internal/templates/{id}/activate
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/templates/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] != "activate" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.ActivateTemplate(parts[0]); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// writeAppError maps the app error taxonomy onto HTTP statuses: 404 for
// missing resources, 409 for conflicts and busy documents, 422 for bad
// input, 429 for a paused budget, 502 for completion-provider failures.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrClientNotFound),
		errors.Is(err, app.ErrTemplateNotFound),
		errors.Is(err, app.ErrDocumentNotFound),
		errors.Is(err, app.ErrCheckpointNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrBusinessPlanExists),
		errors.Is(err, app.ErrDeliverableExists),
		errors.Is(err, app.ErrDocumentBusy),
		errors.Is(err, app.ErrJobNotResumable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidMonth),
		errors.Is(err, app.ErrEmptySectionList),
		errors.Is(err, app.ErrBudgetPeriodInvalid),
		errors.Is(err, completion.ErrPromptRequired):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, completion.ErrBudgetPaused):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, completion.ErrGeneration):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForGeneration(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForGeneration(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "GEN_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusNotFound:
		return "GEN_NOT_FOUND"
	case http.StatusConflict:
		return "GEN_CONFLICT"
	case http.StatusUnprocessableEntity:
		return "GEN_VALIDATION_FAILED"
	case http.StatusTooManyRequests:
		return "GEN_CAPACITY_EXCEEDED"
	case http.StatusBadGateway:
		return "GEN_PROVIDER_ERROR"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
