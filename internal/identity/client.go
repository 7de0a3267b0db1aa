package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"personastudio/internal/domain"
	"personastudio/internal/infra"
)

const (
	MessageVerificationSent = "Please check your email for verification code"
	MessageAccountVerified  = "Account verified successfully"
	MessageSignedIn         = "Sign in successful"
	MessageResetCodeSent    = "Password reset code sent to your email"
	MessagePasswordReset    = "Password reset successful"
)

const expirySkew = 30 * time.Second

// Authenticator supplies the signed-in user and a bearer token for outgoing calls.
type Authenticator interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
	AccessToken(ctx context.Context) (string, error)
}

// Client runs the account flows and owns the current session.
type Client struct {
	provider Provider
	store    SessionStore
	logger   *infra.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewClient(provider Provider, store SessionStore, logger *infra.Logger) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Client{
		provider: provider,
		store:    store,
		logger:   infra.LoggerOrDiscard(logger),
		now:      time.Now,
	}
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.Invalid("email", "email and password are required")
	}
	res, err := c.provider.SignUp(ctx, email, password, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	res.Message = MessageVerificationSent
	return res, nil
}

func (c *Client) ConfirmSignUp(ctx context.Context, email, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", domain.Invalid("code", "verification code is required")
	}
	if err := c.provider.ConfirmSignUp(ctx, email, code); err != nil {
		return "", err
	}
	return MessageAccountVerified, nil
}

// SignIn authenticates and stores the resulting session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.Invalid("email", "email and password are required")
	}
	tokens, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	session, err := c.sessionFromTokens(tokens)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(ctx, session); err != nil {
		return nil, err
	}
	c.logger.Info().Str("user", session.User.Sub).Msg(MessageSignedIn)
	return session, nil
}

// SignOut revokes the tokens when possible and always clears the local session.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	if session != nil && session.AccessToken != "" {
		if err := c.provider.SignOut(ctx, session.AccessToken); err != nil {
			c.logger.Warn().Err(err).Msg("identity: remote sign-out failed")
		}
	}
	return c.store.Clear(ctx)
}

// CurrentUser returns the signed-in user, or domain.ErrAuthenticationRequired.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	user := session.User
	return &user, nil
}

// AccessToken returns a bearer token for the current session.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

// Session returns a valid session, refreshing an expired one at most once.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	if !session.Expired(c.now(), expirySkew) {
		return session, nil
	}
	if session.RefreshToken == "" {
		_ = c.store.Clear(ctx)
		return nil, domain.ErrAuthenticationRequired
	}
	tokens, err := c.provider.Refresh(ctx, session.RefreshToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("identity: session refresh failed")
		if errors.Is(err, domain.ErrAuthenticationRequired) {
			_ = c.store.Clear(ctx)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationRequired, err)
	}
	refreshed, err := c.sessionFromTokens(tokens)
	if err != nil {
		return nil, err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}
	if err := c.store.Save(ctx, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", domain.Invalid("email", "email is required")
	}
	if err := c.provider.ForgotPassword(ctx, email); err != nil {
		return "", err
	}
	return MessageResetCodeSent, nil
}

// ConfirmPassword completes a reset started by ForgotPassword.
func (c *Client) ConfirmPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	if strings.TrimSpace(code) == "" || newPassword == "" {
		return "", domain.Invalid("code", "code and new password are required")
	}
	if err := c.provider.ConfirmForgotPassword(ctx, email, code, newPassword); err != nil {
		return "", err
	}
	return MessagePasswordReset, nil
}

func (c *Client) sessionFromTokens(tokens *Tokens) (*Session, error) {
	user, err := UserFromIDToken(tokens.IDToken)
	if err != nil {
		return nil, err
	}
	var expiresAt time.Time
	if tokens.ExpiresIn > 0 {
		expiresAt = c.now().Add(tokens.ExpiresIn)
	}
	return &Session{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         *user,
	}, nil
}

var _ Authenticator = (*Client)(nil)
