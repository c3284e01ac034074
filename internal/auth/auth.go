// Package auth provides sign-in, sign-up and token handling behind a
// provider-neutral interface. Provider-specific types stay in this package.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"resumewizard/internal/errors"

	"github.com/go-playground/validator/v10"
)

// OAuth providers the UI can offer
const (
	ProviderGoogle   = "google"
	ProviderApple    = "apple"
	ProviderLinkedIn = "linkedin_oidc"
)

// Default redirect targets for OAuth sign-in
const (
	DefaultRedirectURL         = "/sso-callback"
	DefaultRedirectURLComplete = "/"
)

var (
	ErrNotInitialized              = errors.NewAuthError(errors.ErrCodeUnauthorized, "Auth service not initialized", nil)
	ErrSignInIncomplete            = errors.NewAuthError(errors.ErrCodeUnauthorized, "Sign in incomplete", nil)
	ErrEmailVerificationIncomplete = errors.NewAuthError(errors.ErrCodeUnauthorized, "Email verification incomplete", nil)
	ErrPasswordResetIncomplete     = errors.NewAuthError(errors.ErrCodeUnauthorized, "Password reset incomplete", nil)
	ErrInvalidCredentials          = errors.NewAuthError(errors.ErrCodeUnauthorized, "Invalid email or password", nil)
	ErrEmailTaken                  = errors.NewValidationError(errors.ErrCodeInvalidRequest, "An account with this email already exists", nil)
	ErrUnsupportedProvider         = errors.NewValidationError(errors.ErrCodeInvalidRequest, "Unsupported OAuth provider", nil)
	ErrInvalidState                = errors.NewAuthError(errors.ErrCodeUnauthorized, "Invalid or expired OAuth state", nil)
	ErrInvalidToken                = errors.NewAuthError(errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
)

// UserProfile is the provider-neutral view of a user
type UserProfile struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email"`
	ImageURL    string `json:"image_url"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsSignedIn  bool   `json:"is_signed_in"`
	IsLoaded    bool   `json:"is_loaded"`
}

// Credentials are an email and password sign-in
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest registers a new account
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name,omitempty" validate:"max=100"`
	LastName  string `json:"last_name,omitempty" validate:"max=100"`
}

// EmailVerification confirms a sign-up
type EmailVerification struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// PasswordResetRequest starts a password reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirm completes a password reset
type PasswordResetConfirm struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// OAuthCompletion is the outcome of an OAuth callback
type OAuthCompletion struct {
	Profile             *UserProfile
	RedirectURL         string
	RedirectURLComplete string
}

// Provider is the authentication capability the server depends on
type Provider interface {
	SignIn(ctx context.Context, creds Credentials) (*UserProfile, error)
	SignUp(ctx context.Context, req SignUpRequest) (*UserProfile, error)
	VerifyEmail(ctx context.Context, email, code string) (*UserProfile, error)
	SignInWithOAuth(ctx context.Context, provider, redirectURL, redirectURLComplete string) (string, error)
	CompleteOAuth(ctx context.Context, state, code string) (*OAuthCompletion, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
	SignOut(ctx context.Context, token string) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a request struct and reports the first failing fields
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid request", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeField(fe))
	}
	appErr := errors.NewValidationError(errors.ErrCodeInvalidRequest, strings.Join(problems, "; "), err)
	return appErr.WithContext("fields", len(fieldErrs))
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
