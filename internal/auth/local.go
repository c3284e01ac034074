package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"resumewizard/internal/config"
	"resumewizard/internal/errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Code purposes passed to a CodeSender
const (
	PurposeVerifyEmail   = "verify_email"
	PurposePasswordReset = "password_reset"
)

// CodeSender delivers one-time codes to users
type CodeSender interface {
	SendCode(ctx context.Context, email, purpose, code string) error
}

// LogCodeSender writes codes to the log. It is meant for development.
type LogCodeSender struct {
	Logger *errors.Logger
}

func (s LogCodeSender) SendCode(_ context.Context, email, purpose, code string) error {
	s.Logger.Info("One-time code issued", "email", email, "purpose", purpose, "code", code)
	return nil
}

type oneTimeCode struct {
	value   string
	expires time.Time
}

type localUser struct {
	profile      UserProfile
	passwordHash []byte
	verified     bool
	verifyCode   *oneTimeCode
	resetCode    *oneTimeCode
}

// LocalProvider keeps accounts in memory with bcrypt-hashed passwords
type LocalProvider struct {
	mu    sync.Mutex
	users map[string]*localUser

	bcryptCost int
	codeTTL    time.Duration
	sender     CodeSender
	google     *GoogleOAuth
	tokens     *TokenIssuer
	logger     *errors.Logger

	now func() time.Time
}

// LocalOptions configures a LocalProvider
type LocalOptions struct {
	BcryptCost int
	CodeTTL    time.Duration
	Sender     CodeSender
	Google     *GoogleOAuth
	Tokens     *TokenIssuer
	Logger     *errors.Logger
}

// NewLocalProvider creates an empty provider
func NewLocalProvider(opts LocalOptions) *LocalProvider {
	if opts.Logger == nil {
		opts.Logger = errors.Discard()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 15 * time.Minute
	}
	if opts.Sender == nil {
		opts.Sender = LogCodeSender{Logger: opts.Logger}
	}
	return &LocalProvider{
		users:      make(map[string]*localUser),
		bcryptCost: opts.BcryptCost,
		codeTTL:    opts.CodeTTL,
		sender:     opts.Sender,
		google:     opts.Google,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// NewFromConfig builds the configured provider and token issuer. The
// provider is nil when auth is set to "none".
func NewFromConfig(cfg config.AuthConfig, logger *errors.Logger) (*LocalProvider, *TokenIssuer) {
	tokens := NewTokenIssuer(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL)
	if cfg.Provider == "none" {
		return nil, tokens
	}

	var googleFlow *GoogleOAuth
	if cfg.Google.ClientID != "" {
		googleFlow = NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}
	return NewLocalProvider(LocalOptions{
		BcryptCost: cfg.BcryptCost,
		CodeTTL:    cfg.CodeTTL,
		Google:     googleFlow,
		Tokens:     tokens,
		Logger:     logger,
	}), tokens
}

// SignUp registers an unverified account and sends its verification code.
// Signing up again before verifying replaces the pending account.
func (p *LocalProvider) SignUp(ctx context.Context, req SignUpRequest) (*UserProfile, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "failed to hash password", err)
	}
	code, err := p.newCode()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if existing, ok := p.users[email]; ok && existing.verified {
		p.mu.Unlock()
		return nil, ErrEmailTaken
	}
	user := &localUser{
		profile: UserProfile{
			ID:        uuid.NewString(),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			FullName:  fullName(req.FirstName, req.LastName),
			Email:     email,
			IsLoaded:  true,
		},
		passwordHash: hash,
		verifyCode:   code,
	}
	p.users[email] = user
	profile := user.profile
	p.mu.Unlock()

	if err := p.sender.SendCode(ctx, email, PurposeVerifyEmail, code.value); err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeUpstreamFailed, "failed to send verification code", err)
	}
	p.logger.Info("Account created, awaiting verification", "user_id", profile.ID)
	return &profile, nil
}

// VerifyEmail confirms an account with the emailed code
func (p *LocalProvider) VerifyEmail(_ context.Context, email, code string) (*UserProfile, error) {
	if err := Validate(EmailVerification{Email: email, Code: code}); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[normalizeEmail(email)]
	if !ok || !p.codeMatches(user.verifyCode, code) {
		return nil, ErrEmailVerificationIncomplete
	}
	user.verified = true
	user.verifyCode = nil
	return signedIn(user.profile), nil
}

// SignIn checks an email and password. Unverified accounts cannot sign in.
func (p *LocalProvider) SignIn(_ context.Context, creds Credentials) (*UserProfile, error) {
	if err := Validate(creds); err != nil {
		return nil, err
	}

	p.mu.Lock()
	user, ok := p.users[normalizeEmail(creds.Email)]
	var hash []byte
	verified := false
	if ok {
		hash, verified = user.passwordHash, user.verified
	}
	p.mu.Unlock()

	if !ok || len(hash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !verified {
		return nil, ErrSignInIncomplete
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return signedIn(user.profile), nil
}

// SignInWithOAuth returns the URL that starts the provider's flow
func (p *LocalProvider) SignInWithOAuth(_ context.Context, provider, redirectURL, redirectURLComplete string) (string, error) {
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	if redirectURLComplete == "" {
		redirectURLComplete = DefaultRedirectURLComplete
	}

	switch provider {
	case ProviderGoogle:
		if !p.google.Configured() {
			return "", ErrNotInitialized
		}
		return p.google.AuthURL(redirectURL, redirectURLComplete), nil
	case ProviderApple, ProviderLinkedIn:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// CompleteOAuth finishes a Google sign-in, linking it to a verified account
// with the same email. An unverified account is replaced, since nobody has
// shown it belongs to the address owner.
func (p *LocalProvider) CompleteOAuth(ctx context.Context, state, code string) (*OAuthCompletion, error) {
	if !p.google.Configured() {
		return nil, ErrNotInitialized
	}

	info, pending, err := p.google.Exchange(ctx, state, code)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(info.Email)
	p.mu.Lock()
	user, ok := p.users[email]
	if !ok || !user.verified {
		if ok {
			p.logger.Debug("Replacing unverified account on Google sign-in")
		}
		user = &localUser{profile: UserProfile{ID: "google:" + info.Sub, Email: email, IsLoaded: true}}
		p.users[email] = user
	}
	user.verified = true
	if user.profile.FirstName == "" {
		user.profile.FirstName = info.GivenName
		user.profile.LastName = info.FamilyName
		user.profile.FullName = info.Name
	}
	if info.Picture != "" {
		user.profile.ImageURL = info.Picture
	}
	profile := signedIn(user.profile)
	p.mu.Unlock()

	return &OAuthCompletion{
		Profile:             profile,
		RedirectURL:         pending.redirectURL,
		RedirectURLComplete: pending.redirectURLComplete,
	}, nil
}

// RequestPasswordReset emails a reset code. Unknown addresses succeed
// silently so accounts cannot be probed.
func (p *LocalProvider) RequestPasswordReset(ctx context.Context, email string) error {
	if err := Validate(PasswordResetRequest{Email: email}); err != nil {
		return err
	}
	email = normalizeEmail(email)

	code, err := p.newCode()
	if err != nil {
		return err
	}

	p.mu.Lock()
	user, ok := p.users[email]
	if ok {
		user.resetCode = code
	}
	p.mu.Unlock()

	if !ok {
		p.logger.Debug("Password reset requested for unknown email")
		return nil
	}
	if err := p.sender.SendCode(ctx, email, PurposePasswordReset, code.value); err != nil {
		return errors.NewNetworkError(errors.ErrCodeUpstreamFailed, "failed to send reset code", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password when the code matches
func (p *LocalProvider) ConfirmPasswordReset(_ context.Context, email, code, newPassword string) error {
	if err := Validate(PasswordResetConfirm{Email: email, Code: code, NewPassword: newPassword}); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "failed to hash password", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[normalizeEmail(email)]
	if !ok || !p.codeMatches(user.resetCode, code) {
		return ErrPasswordResetIncomplete
	}
	user.passwordHash = hash
	user.resetCode = nil
	// Receiving the code proves ownership of the address
	user.verified = true
	return nil
}

// SignOut revokes the session token
func (p *LocalProvider) SignOut(_ context.Context, token string) error {
	if p.tokens == nil {
		return ErrNotInitialized
	}
	return p.tokens.Revoke(token)
}

// Profile looks up a user by ID
func (p *LocalProvider) Profile(id string) (*UserProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, user := range p.users {
		if user.profile.ID == id {
			return signedIn(user.profile), true
		}
	}
	return nil, false
}

// UserCount is the number of known accounts
func (p *LocalProvider) UserCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}

func (p *LocalProvider) newCode() (*oneTimeCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "failed to generate code", err)
	}
	return &oneTimeCode{value: fmt.Sprintf("%06d", n.Int64()), expires: p.now().Add(p.codeTTL)}, nil
}

func (p *LocalProvider) codeMatches(want *oneTimeCode, got string) bool {
	if want == nil || p.now().After(want.expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want.value), []byte(got)) == 1
}

func signedIn(profile UserProfile) *UserProfile {
	profile.IsSignedIn = true
	profile.IsLoaded = true
	return &profile
}
