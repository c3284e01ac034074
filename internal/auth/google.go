package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleOAuth runs the authorization code flow against Google
type GoogleOAuth struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	stateTTL    time.Duration
	states      *stateStore
}

// NewGoogleOAuth builds the Google flow. callbackURL is where Google sends
// the user back to this service.
func NewGoogleOAuth(clientID, clientSecret, callbackURL string) *GoogleOAuth {
	return &GoogleOAuth{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		stateTTL:    5 * time.Minute,
		states:      newStateStore(),
	}
}

// WithEndpoint points the flow at another authorization server
func (g *GoogleOAuth) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *GoogleOAuth {
	g.oauthConfig.Endpoint = endpoint
	g.userInfoURL = userInfoURL
	return g
}

// Configured reports whether client credentials are present
func (g *GoogleOAuth) Configured() bool {
	return g != nil && g.oauthConfig.ClientID != "" && g.oauthConfig.ClientSecret != "" && g.oauthConfig.RedirectURL != ""
}

// AuthURL starts a flow and remembers where to send the user afterwards
func (g *GoogleOAuth) AuthURL(redirectURL, redirectURLComplete string) string {
	state := uuid.NewString()
	g.states.put(state, pendingState{
		redirectURL:         redirectURL,
		redirectURLComplete: redirectURLComplete,
		expires:             time.Now().Add(g.stateTTL),
	})
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the user's Google profile. Each
// state is accepted once.
func (g *GoogleOAuth) Exchange(ctx context.Context, state, code string) (*googleUserInfo, pendingState, error) {
	pending, ok := g.states.consume(state)
	if !ok {
		return nil, pendingState{}, ErrInvalidState
	}

	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, pendingState{}, fmt.Errorf("failed to exchange code: %w", err)
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, pendingState{}, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	if info.Sub == "" {
		return nil, pendingState{}, fmt.Errorf("invalid user profile")
	}
	return info, pending, nil
}

type googleUserInfo struct {
	Sub        string `json:"sub"`
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (g *GoogleOAuth) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	resp, err := g.oauthConfig.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	// The v2 endpoint reports "id" rather than "sub"
	if info.Sub == "" {
		info.Sub = info.ID
	}
	return &info, nil
}

type pendingState struct {
	redirectURL         string
	redirectURLComplete string
	expires             time.Time
}

type stateStore struct {
	mu    sync.Mutex
	items map[string]pendingState
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]pendingState)}
}

func (s *stateStore) put(state string, pending pendingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, p := range s.items {
		if now.After(p.expires) {
			delete(s.items, key)
		}
	}
	s.items[state] = pending
}

func (s *stateStore) consume(state string) (pendingState, bool) {
	s.mu.Lock()
	pending, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()

	if !ok || time.Now().After(pending.expires) {
		return pendingState{}, false
	}
	return pending, true
}
