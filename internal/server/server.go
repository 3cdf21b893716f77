// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"readaloud/internal/app"
	"readaloud/internal/ratelimit"
	"readaloud/internal/util"
	"readaloud/pkg/auth"
	"readaloud/pkg/domain"
	"readaloud/pkg/pdfdoc"
	"readaloud/pkg/store"
	"readaloud/pkg/tts"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	RedisAddr     string
	RedisPassword string

	RegisterRateLimitPerMinute  int
	TokenRateLimitPerMinute     int
	SynthesisRateLimitPerMinute int

	MaxUploadBytes int64
}

// Server exposes HTTP endpoints for the reading service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	validate       *validator.Validate
	maxUploadBytes int64

	registerLimiter  *ratelimit.FixedWindowLimiter
	tokenLimiter     *ratelimit.FixedWindowLimiter
	synthesisLimiter *ratelimit.FixedWindowLimiter
}

const defaultMaxUploadBytes = 64 << 20

// New constructs the server with routes configured. Rate limiting is
// active only when a Redis address is supplied.
func New(cfg Config) (*Server, error) {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		validate:       validator.New(),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		newLimiter := func(name string, limit, fallback int) (*ratelimit.FixedWindowLimiter, error) {
			if limit <= 0 {
				limit = fallback
			}
			prefix := "readaloud:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
			return nil, err
		}
		if s.tokenLimiter, err = newLimiter("token", cfg.TokenRateLimitPerMinute, 10); err != nil {
			return nil, err
		}
		if s.synthesisLimiter, err = newLimiter("synthesize", cfg.SynthesisRateLimitPerMinute, 6); err != nil {
			return nil, err
		}
	}

	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the standard
// middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/token", s.handleToken)
	s.mux.Handle("/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/profile/me", s.authenticated(s.handleProfile))
	s.mux.Handle("/admin/users", s.adminOnly(s.handleAdminUsers))

	// library
	s.mux.Handle("/books", s.authenticated(s.handleBooks))
	s.mux.Handle("/add_book", s.authenticated(s.handleAddBook))
	s.mux.Handle("/get_book", s.authenticated(s.handleGetBook))
	s.mux.Handle("/flip", s.authenticated(s.handleFlip))
	s.mux.Handle("/get_pages_num", s.authenticated(s.handlePagesNum))
	s.mux.Handle("/get_image", s.authenticated(s.handleGetImage))
	s.mux.Handle("/delete_book", s.authenticated(s.handleDeleteBook))

	// text utilities
	s.mux.HandleFunc("/text", s.handleText)
	s.mux.HandleFunc("/chunk_text", s.handleChunkText)

	// synthesis
	s.mux.Handle("/tts_model", s.authenticated(s.handleTTSModel))
	s.mux.Handle("/synthesize", s.authenticated(s.handleSynthesize))
	s.mux.HandleFunc("/synthesize_api", s.handleSynthesizeAPI)
	s.mux.Handle("/synthesize_book", s.authenticated(s.handleSynthesizeBook))
	s.mux.Handle("/synthesize_book/", s.authenticated(s.handleSynthesisJob))
	s.mux.Handle("/recordings", s.authenticated(s.handleRecordings))
	s.mux.Handle("/recordings/", s.authenticated(s.handleRecordingAudio))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "auth.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			s.audit(r, "auth.admin", "fail", "username", user.Username)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserFromToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// account handlers

type registerRequest struct {
	FullName string `json:"fullname" validate:"omitempty,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=255"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.audit(r, "auth.register", "fail", "reason", "validation")
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	user, err := s.app.Register(req.FullName, req.Email, req.Username, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.audit(r, "auth.register", "success", "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.tokenLimiter, "too many login attempts") {
		s.audit(r, "auth.token", "rate_limited")
		return
	}
	// OAuth2 password flow, form-encoded.
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	_, token, err := s.app.Authenticate(username, password)
	if err != nil {
		s.audit(r, "auth.token", "fail", "username", username)
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.audit(r, "auth.token", "success", "username", username)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.audit(r, "auth.logout", "success", "username", user.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

// helpers

// uploadedPDF pulls the "pdf_file" part out of a multipart upload,
// writing the error response itself when the part is missing.
func (s *Server) uploadedPDF(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return nil, nil, false
	}
	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf_file form field is required")
		return nil, nil, false
	}
	return file, header, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Sprintf("invalid field %s (%s)", strings.ToLower(e.Field()), e.Tag())
	}
	return "invalid request"
}

func statusForError(err error) int {
	var apiErr *tts.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrNoThumbnail),
		errors.Is(err, app.ErrRecordingNotFound),
		errors.Is(err, app.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrRegistrationFields),
		errors.Is(err, app.ErrFilenameRequired),
		errors.Is(err, app.ErrNotPDF),
		errors.Is(err, app.ErrBookExists),
		errors.Is(err, app.ErrNothingToSpeak),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrUsernameTaken),
		errors.Is(err, pdfdoc.ErrInvalidPage),
		errors.Is(err, pdfdoc.ErrNoText):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoLocalEngine),
		errors.Is(err, app.ErrNoCloudEngine),
		errors.Is(err, app.ErrQueueDisabled),
		errors.Is(err, app.ErrNoArchive):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
