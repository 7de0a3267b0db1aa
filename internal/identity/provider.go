// Package identity manages sign-up, sign-in and the signed-in session against
// the hosted identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"personastudio/internal/domain"
)

// Provider is the narrow surface the studio needs from an identity backend.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error
}

// Tokens is what a successful authentication returns.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// SignUpResult reports a registration that is waiting for email verification.
type SignUpResult struct {
	UserSub       string `json:"user_sub"`
	UserConfirmed bool   `json:"user_confirmed"`
	Message       string `json:"message"`
}

// Session is a signed-in user together with the tokens that prove it.
type Session struct {
	AccessToken  string      `yaml:"access_token" json:"access_token"`
	IDToken      string      `yaml:"id_token" json:"id_token"`
	RefreshToken string      `yaml:"refresh_token,omitempty" json:"refresh_token,omitempty"`
	ExpiresAt    time.Time   `yaml:"expires_at" json:"expires_at"`
	User         domain.User `yaml:"user" json:"user"`
}

// Expired reports whether the access token is at or past expiry, allowing skew.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// ProviderError carries the identity provider's own error code and message.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Is maps rejected credentials onto domain.ErrAuthenticationRequired.
func (e *ProviderError) Is(target error) bool {
	if target != domain.ErrAuthenticationRequired {
		return false
	}
	switch e.Code {
	case "NotAuthorizedException", "UserNotFoundException", "UserNotConfirmedException":
		return true
	}
	return false
}

// Username derives the provider username from an email address.
func Username(email string) string {
	replaced := strings.NewReplacer("@", "_", ".", "_").Replace(strings.TrimSpace(email))
	return strings.ToLower(replaced)
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	default:
		*b = false
	}
	return nil
}

type idTokenClaims struct {
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	EmailVerified flexBool `json:"email_verified"`
	jwt.RegisteredClaims
}

// UserFromIDToken reads the user profile out of an ID token. The signature is
// not checked: the token came straight from the provider over TLS.
func UserFromIDToken(idToken string) (*domain.User, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, errors.New("identity: id token is empty")
	}
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err != nil {
		return nil, fmt.Errorf("identity: parse id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("identity: id token has no subject")
	}
	return &domain.User{
		Sub:           claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}
