// Package server exposes the public found-object submission endpoint used by
// staff kiosks and the passenger-facing form. Unlike the dashboard API it is
// unauthenticated and relies on per-IP rate limiting.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lostfound/internal/ratelimit"
	"lostfound/internal/util"
	"lostfound/pkg/report"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Submitter                *report.Submitter
	RedisAddr                string
	RedisPassword            string
	ReportRateLimitPerMinute int
	MaxUploadBytes           int64
	AllowedOrigins           []string
	TrustedProxies           *util.TrustedProxies
}

// Server exposes the intake HTTP endpoints.
type Server struct {
	submitter      *report.Submitter
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
	reportLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Submitter == nil {
		return nil, errors.New("server requires a submitter")
	}
	reportLimit := cfg.ReportRateLimitPerMinute
	if reportLimit <= 0 {
		reportLimit = 5
	}
	reportLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "lostfound:intake:ratelimit:report", reportLimit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init report limiter: %w", err)
	}
	s := &Server{
		submitter:      cfg.Submitter,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		reportLimiter:  reportLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	handler := util.WithRequestLog("intake", s.mux)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.allowedOrigins, handler)
	return util.WithSecurityHeaders(handler)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/reports/found", s.handleSubmitFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitFound accepts the multipart found-report form with an optional
// image file.
func (s *Server) handleSubmitFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowRate(w, r) {
		s.audit(r, "intake.report", "rate_limited")
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		s.audit(r, "intake.report", "fail", "reason", "invalid_form")
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	sub := report.Submission{
		Type:           r.FormValue("type"),
		Description:    r.FormValue("description"),
		Location:       r.FormValue("location"),
		VolID:          r.FormValue("volId"),
		PickupLocation: r.FormValue("pickupLocation"),
		Email:          r.FormValue("email"),
		Phone:          r.FormValue("phone"),
	}
	var img *report.Image
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		img = &report.Image{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      file,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		s.audit(r, "intake.report", "fail", "reason", "invalid_image")
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return
	}
	result, err := s.submitter.Submit(r.Context(), sub, img)
	if err != nil {
		var validation *report.ValidationError
		if errors.As(err, &validation) {
			s.audit(r, "intake.report", "fail", "reason", "validation", "field", validation.Field)
			writeError(w, http.StatusBadRequest, validation.Error())
			return
		}
		s.audit(r, "intake.report", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "could not store the report")
		return
	}
	s.audit(r, "intake.report", "success", "doc_id", result.DocID, "ref", result.Ref)
	writeJSON(w, http.StatusCreated, result)
}

// envelope is the uniform response wrapper every endpoint uses.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if s.reportLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many reports, retry later")
	return false
}
