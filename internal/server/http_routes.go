package server

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Principal is the caller a request was authenticated as
type Principal struct {
	Subject string
	Kind    string
	Email   string
	Token   string
}

// Principal kinds
const (
	PrincipalUser      = "user"
	PrincipalAPIKey    = "api_key"
	PrincipalAnonymous = "anonymous"
)

type principalKey struct{}

// PrincipalFromContext returns the authenticated caller, if any
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Handler builds the routed handler with the full middleware chain except
// tracing, which the caller adds
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.rateLimitMiddleware(s.setupRoutes()))
}

// setupRoutes configures all HTTP routes and per-route middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.Handler {
		return s.authMiddleware(s.requestSizeLimitMiddleware(s.MaxRequestSize, h))
	}
	upload := func(h http.HandlerFunc) http.Handler {
		return s.authMiddleware(s.requestSizeLimitMiddleware(s.uploadLimit(), h))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return s.requestSizeLimitMiddleware(s.MaxRequestSize, h)
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	// Same-origin proxy to the resume backend
	mux.Handle("POST /api/proxy/generate_resume", upload(s.proxyGenerateResume))
	mux.Handle("GET /api/proxy/get_job_roles", protected(s.proxyGetJobRoles))
	mux.Handle("POST /api/proxy/edit_resume", protected(s.proxyEditResume))

	mux.Handle("GET /api/job-roles", protected(s.jobRolesHandler))
	mux.Handle("POST /api/job-roles/reset", protected(s.jobRolesResetHandler))

	mux.Handle("POST /api/wizard/sessions", protected(s.createSessionHandler))
	mux.Handle("GET /api/wizard/sessions/{id}", protected(s.getSessionHandler))
	mux.Handle("DELETE /api/wizard/sessions/{id}", protected(s.deleteSessionHandler))
	mux.Handle("PUT /api/wizard/sessions/{id}/job-description", protected(s.jobDescriptionHandler))
	mux.Handle("PUT /api/wizard/sessions/{id}/job-roles", protected(s.sessionRolesHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/upload", upload(s.uploadHandler))
	mux.Handle("DELETE /api/wizard/sessions/{id}/upload", protected(s.clearUploadHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/next", protected(s.nextHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/back", protected(s.backHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/generate", protected(s.generateHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/reset", protected(s.resetSessionHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/edit-mode", protected(s.editModeHandler))
	mux.Handle("GET /api/wizard/sessions/{id}/edit/messages", protected(s.editMessagesHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/edit/messages", protected(s.sendEditHandler))
	mux.Handle("POST /api/wizard/sessions/{id}/download", protected(s.downloadHandler))

	mux.Handle("POST /api/auth/sign-in", public(s.signInHandler))
	mux.Handle("POST /api/auth/sign-up", public(s.signUpHandler))
	mux.Handle("POST /api/auth/verify-email", public(s.verifyEmailHandler))
	mux.Handle("POST /api/auth/password-reset", public(s.passwordResetHandler))
	mux.Handle("POST /api/auth/password-reset/confirm", public(s.passwordResetConfirmHandler))
	mux.Handle("GET /api/auth/oauth/callback", public(s.oauthCallbackHandler))
	mux.Handle("GET /api/auth/oauth/{provider}", public(s.oauthStartHandler))
	mux.Handle("POST /api/auth/sign-out", public(s.signOutHandler))
	mux.Handle("GET /api/auth/me", public(s.meHandler))

	return mux
}

// authRequired reports whether protected routes reject anonymous callers
func (s *Server) authRequired() bool {
	return s.AuthEnabled || len(s.APIKeys) > 0
}

// identify resolves the caller from X-API-Key or a Bearer token. A Bearer
// value is tried as an API key first, then as a session token.
func (s *Server) identify(r *http.Request) (*Principal, bool) {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		if !s.APIKeys[apiKey] {
			return nil, false
		}
		return &Principal{Subject: "api_key:" + maskAPIKey(apiKey), Kind: PrincipalAPIKey}, true
	}

	token := bearerToken(r)
	if token == "" {
		return nil, true
	}
	if s.APIKeys[token] {
		return &Principal{Subject: "api_key:" + maskAPIKey(token), Kind: PrincipalAPIKey}, true
	}
	if s.tokens != nil {
		if claims, err := s.tokens.Validate(token); err == nil {
			return &Principal{Subject: claims.Subject, Kind: PrincipalUser, Email: claims.Email, Token: token}, true
		}
	}
	if s.authRequired() {
		return nil, false
	}
	// Opaque tokens pass through for the backend to judge
	return &Principal{Subject: PrincipalAnonymous, Kind: PrincipalAnonymous, Token: token}, true
}

// authMiddleware attaches the caller to the request context and rejects
// unauthenticated callers when API keys or user auth are configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := s.identify(r)
		if !ok {
			s.Logger.Info("Authentication failed: invalid credentials",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Unauthorized", "Invalid API key or session token", http.StatusUnauthorized)
			return
		}

		if principal == nil {
			if s.authRequired() {
				s.Logger.Info("Authentication failed: missing credentials",
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				writeErrorResponse(w, "Unauthorized", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
				return
			}
			principal = &Principal{Subject: PrincipalAnonymous, Kind: PrincipalAnonymous}
		}

		s.Logger.Debug("Request authenticated",
			"endpoint", r.URL.Path,
			"kind", principal.Kind,
			"subject", principal.Subject)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	})
}

// requestSizeLimitMiddleware caps the request body at limit bytes
func (s *Server) requestSizeLimitMiddleware(limit int64, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next(w, r)
	})
}

// corsMiddleware answers preflight requests and tags responses for
// allowed origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	cors := s.AppConfig.Server.CORS
	if !cors.Enabled {
		return next
	}
	allowAll := slices.Contains(cors.AllowedOrigins, "*")
	maxAge := strconv.Itoa(int(cors.MaxAge / time.Second))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && (allowAll || slices.Contains(cors.AllowedOrigins, origin))

		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if cors.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
			h.Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken returns the token of an "Authorization: Bearer" header
func bearerToken(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
