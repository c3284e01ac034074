package server

import (
	"net/http"
	"net/url"
	"time"

	"resumewizard/internal/auth"
)

// SessionResponse carries a freshly issued session token
type SessionResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *auth.UserProfile `json:"user"`
}

// SignUpResponse reports a pending account awaiting email verification
type SignUpResponse struct {
	User                 *auth.UserProfile `json:"user"`
	VerificationRequired bool              `json:"verification_required"`
}

type profileLookup interface {
	Profile(id string) (*auth.UserProfile, bool)
}

// authProvider returns the provider or writes the not-initialized error
func (s *Server) authProvider(w http.ResponseWriter, r *http.Request) (auth.Provider, bool) {
	if s.auth == nil || s.tokens == nil {
		s.writeError(w, r, auth.ErrNotInitialized)
		return nil, false
	}
	return s.auth, true
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, profile *auth.UserProfile) {
	token, expiresAt, err := s.tokens.Issue(profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Token: token, ExpiresAt: expiresAt, User: profile})
}

func (s *Server) signInHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	var req auth.Credentials
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := provider.SignIn(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issueSession(w, r, profile)
}

func (s *Server) signUpHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	var req auth.SignUpRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := provider.SignUp(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SignUpResponse{User: profile, VerificationRequired: true})
}

func (s *Server) verifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	var req auth.EmailVerification
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := provider.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.issueSession(w, r, profile)
}

func (s *Server) passwordResetHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	var req auth.PasswordResetRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := provider.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "code_sent"})
}

func (s *Server) passwordResetConfirmHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	var req auth.PasswordResetConfirm
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := provider.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// oauthStartHandler redirects the browser to the provider's consent page
func (s *Server) oauthStartHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	authURL, err := provider.SignInWithOAuth(r.Context(),
		r.PathValue("provider"),
		query.Get("redirect_url"),
		query.Get("redirect_url_complete"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// oauthCallbackHandler completes the flow and hands the session token to
// the front end's callback route
func (s *Server) oauthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		writeErrorResponse(w, "Sign in incomplete", providerErr, http.StatusUnauthorized)
		return
	}

	completion, err := provider.CompleteOAuth(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, _, err := s.tokens.Issue(completion.Profile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	target, err := url.Parse(completion.RedirectURL)
	if err != nil {
		target = &url.URL{Path: auth.DefaultRedirectURL}
	}
	values := target.Query()
	values.Set("token", token)
	values.Set("next", completion.RedirectURLComplete)
	target.RawQuery = values.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) signOutHandler(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider(w, r)
	if !ok {
		return
	}
	token := bearerToken(r)
	if token == "" {
		s.writeError(w, r, auth.ErrInvalidToken)
		return
	}
	if err := provider.SignOut(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// meHandler returns the signed-in user's profile
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authProvider(w, r); !ok {
		return
	}
	claims, err := s.tokens.Validate(bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if lookup, ok := s.auth.(profileLookup); ok {
		if profile, found := lookup.Profile(claims.Subject); found {
			writeJSON(w, http.StatusOK, profile)
			return
		}
	}
	writeJSON(w, http.StatusOK, &auth.UserProfile{
		ID:         claims.Subject,
		Email:      claims.Email,
		FullName:   claims.Name,
		IsSignedIn: true,
		IsLoaded:   true,
	})
}
