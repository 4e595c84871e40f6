package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lostfound/internal/identity"
	"lostfound/internal/matchpipe"
	"lostfound/internal/ratelimit"
	"lostfound/internal/usertoken"
	"lostfound/internal/util"
	"lostfound/pkg/domain"
	"lostfound/pkg/report"
	"lostfound/services/admin/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                     *app.App
	Identity                *identity.Client
	TokenVerifier           *usertoken.Verifier
	RedisAddr               string
	RedisPassword           string
	LoginRateLimitPerMinute int
	MaxUploadBytes          int64
	AllowedOrigins          []string
	TrustedProxies          *util.TrustedProxies
}

// Server exposes the dashboard HTTP endpoints.
type Server struct {
	app            *app.App
	identity       *identity.Client
	tokenVerifier  *usertoken.Verifier
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	trustedProxies *util.TrustedProxies
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires the app core")
	}
	if cfg.Identity == nil {
		return nil, errors.New("server requires the identity client")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	loginLimiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "lostfound:admin:ratelimit:login", loginLimit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init login limiter: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		identity:       cfg.Identity,
		tokenVerifier:  cfg.TokenVerifier,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
		loginLimiter:   loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	handler := util.WithRequestLog("admin", s.mux)
	handler = util.WithRequestID(handler)
	handler = util.WithCORS(s.allowedOrigins, handler)
	return util.WithSecurityHeaders(handler)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// session
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/session", s.sessionized(s.handleSession))

	// collections
	s.mux.Handle("/api/found", s.sessionized(s.handleFound))
	s.mux.Handle("/api/found/", s.sessionized(s.handleFoundByID))
	s.mux.Handle("/api/lost", s.sessionized(s.handleLost))
	s.mux.Handle("/api/lost/", s.sessionized(s.handleLostByID))
	s.mux.Handle("/api/owners", s.sessionized(s.handleOwners))
	s.mux.Handle("/api/owners/", s.sessionized(s.handleOwnerByID))
	s.mux.Handle("/api/matches", s.sessionized(s.handleMatches))
	s.mux.Handle("/api/matches/", s.sessionized(s.handleMatchByID))

	// cross-cutting
	s.mux.Handle("/api/search", s.sessionized(s.handleSearch))
	s.mux.Handle("/api/stats", s.sessionized(s.handleStats))

	// curated views
	s.mux.Handle("/api/views/archived", s.sessionized(s.handleArchived))
	s.mux.Handle("/api/views/non-deposited", s.sessionized(s.handleNonDeposited))
	s.mux.Handle("/api/views/pending", s.sessionized(s.handlePending))
	s.mux.Handle("/api/views/pending/process", s.sessionized(s.handleProcessPending))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// sessionized verifies the bearer token offline, confirms the session with
// the identity service, then requires a matching admin account in the users
// collection. Valid credentials without an admin account are a 403.
func (s *Server) sessionized(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var email string
		if s.tokenVerifier != nil {
			ident, err := s.tokenVerifier.Verify(token)
			if err != nil {
				s.audit(r, "admin.authorize", "fail", "reason", "invalid_signature_or_claims")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			email = ident.Email
		}
		account, err := s.identity.Introspect(r.Context(), token)
		if err != nil {
			s.audit(r, "admin.authorize", "fail", "reason", "introspect_failed")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if email == "" {
			email = account.Email
		}
		user, err := s.app.LookupUser(r.Context(), email)
		if err != nil || !user.IsAdmin() {
			s.audit(r, "admin.authorize", "fail", "email", email, "reason", "not_admin")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

// auth handlers
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "admin.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "admin.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.audit(r, "admin.login", "fail", "reason", "missing_credentials")
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := s.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "admin.login", "fail", "reason", err.Error())
		writeIdentityError(w, err)
		return
	}
	user, err := s.app.LookupUser(r.Context(), session.Account.Email)
	if err != nil || !user.IsAdmin() {
		s.audit(r, "admin.login", "fail", "email", session.Account.Email, "reason", "not_admin")
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.audit(r, "admin.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:        session.Token,
		RefreshToken: session.RefreshToken,
		User:         user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req logoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.audit(r, "admin.logout", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "admin.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.identity.SignOut(r.Context(), token, req.RefreshToken); err != nil {
		s.audit(r, "admin.logout", "fail", "reason", err.Error())
		writeIdentityError(w, err)
		return
	}
	s.audit(r, "admin.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// /api/found
func (s *Server) handleFound(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	switch r.Method {
	case http.MethodGet:
		objs, err := s.app.ListFound(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("q"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: objs, Count: len(objs)})
	case http.MethodPost:
		s.handleCreateFound(w, r)
	default:
		methodNotAllowed(w)
	}
}

// handleCreateFound accepts the found-report multipart form with an optional
// image file.
func (s *Server) handleCreateFound(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
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
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return
	}
	result, err := s.app.SubmitFound(r.Context(), sub, img)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.found.create", "success", "doc_id", result.DocID, "ref", result.Ref)
	writeJSON(w, http.StatusCreated, result)
}

// /api/found/{id} or /api/found/{id}/status
func (s *Server) handleFoundByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	id, action, ok := splitIDPath(r.URL.Path, "/api/found/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if action == "status" {
		s.handleSetStatus(w, r, "admin.found.status", func(status string) error {
			return s.app.SetFoundStatus(r.Context(), id, status)
		})
		return
	}
	if action != "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		obj, err := s.app.GetFound(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)
	case http.MethodPatch:
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}
		if err := s.app.UpdateFound(r.Context(), id, fields); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.app.DeleteFound(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.found.delete", "success", "doc_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// /api/lost
func (s *Server) handleLost(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	switch r.Method {
	case http.MethodGet:
		objs, err := s.app.ListLost(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("q"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: objs, Count: len(objs)})
	case http.MethodPost:
		var req lostCreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Type == "" || req.Description == "" {
			writeError(w, http.StatusBadRequest, "type and description are required")
			return
		}
		id, err := s.app.CreateLost(r.Context(), domain.LostObject{
			Type:              req.Type,
			Description:       req.Description,
			AdditionalDetails: req.AdditionalDetails,
			Location:          req.Location,
			Colors:            req.Colors,
			OwnerID:           req.OwnerID,
			Status:            domain.LostStatus(req.Status),
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.lost.create", "success", "doc_id", id)
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		methodNotAllowed(w)
	}
}

// /api/lost/{id} or /api/lost/{id}/status
func (s *Server) handleLostByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	id, action, ok := splitIDPath(r.URL.Path, "/api/lost/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if action == "status" {
		s.handleSetStatus(w, r, "admin.lost.status", func(status string) error {
			return s.app.SetLostStatus(r.Context(), id, status)
		})
		return
	}
	if action != "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		obj, err := s.app.GetLost(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)
	case http.MethodPatch:
		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}
		if err := s.app.UpdateLost(r.Context(), id, fields); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if err := s.app.DeleteLost(r.Context(), id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.lost.delete", "success", "doc_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request, event string, apply func(status string) error) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if err := apply(req.Status); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, event, "success", "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// /api/owners
func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	owners, err := s.app.ListOwners(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: owners, Count: len(owners)})
}

// /api/owners/{id}
func (s *Server) handleOwnerByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	id, action, ok := splitIDPath(r.URL.Path, "/api/owners/")
	if !ok || action != "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteOwner(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.owner.delete", "success", "doc_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// /api/matches
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	matches, err := s.app.ListMatches(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: matches, Count: len(matches)})
}

// /api/matches/{id} or /api/matches/{id}/status
func (s *Server) handleMatchByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	id, action, ok := splitIDPath(r.URL.Path, "/api/matches/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if action == "status" {
		s.handleSetStatus(w, r, "admin.match.status", func(status string) error {
			return s.app.SetMatchStatus(r.Context(), id, status)
		})
		return
	}
	if action != "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.app.DeleteMatch(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.match.delete", "success", "doc_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	results, err := s.app.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	result, err := s.app.Stats(r.Context(), days)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// curated views
func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	objs, err := s.app.Archived(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: objs, Count: len(objs)})
}

func (s *Server) handleNonDeposited(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	objs, err := s.app.NonDeposited(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: objs, Count: len(objs)})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.Pending(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProcessPending(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	processed, err := s.app.ProcessPending(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.pending.process", "success", "count", len(processed))
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed, "count": len(processed)})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type sessionResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         domain.User `json:"user"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type lostCreateRequest struct {
	Type              string   `json:"type"`
	Description       string   `json:"description"`
	AdditionalDetails string   `json:"additionalDetails"`
	Location          string   `json:"location"`
	Colors            []string `json:"color"`
	OwnerID           string   `json:"ownerId"`
	Status            string   `json:"status"`
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// envelope is the uniform response wrapper every endpoint uses.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

// splitIDPath extracts "{id}" and an optional trailing "{action}" from a
// collection sub-path.
func splitIDPath(path, prefix string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		if parts[1] == "" || strings.Contains(parts[1], "/") {
			return "", "", false
		}
		return parts[0], parts[1], true
	}
	return parts[0], "", true
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var fields map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "at least one field is required")
		return nil, false
	}
	return fields, true
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

// writeAppError maps app-core errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var validation *report.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrInvalidStatus),
		errors.Is(err, app.ErrInvalidField),
		errors.Is(err, app.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeMatchError(w, err)
	}
}

func writeIdentityError(w http.ResponseWriter, err error) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "identity service unavailable")
}

func writeMatchError(w http.ResponseWriter, err error) {
	var apiErr *matchpipe.APIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, "matching service unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
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

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
