package identity

import (
	"context"

	"personastudio/internal/domain"
)

type bearerKey struct{}

type bearer struct {
	user  domain.User
	token string
}

// WithBearer attaches a verified user and their access token to ctx.
func WithBearer(ctx context.Context, user domain.User, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, bearer{user: user, token: token})
}

// UserFromContext returns the user stored by WithBearer.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	b, ok := ctx.Value(bearerKey{}).(bearer)
	if !ok {
		return nil, false
	}
	user := b.user
	return &user, true
}

// ContextAuth is an Authenticator backed by the request context, used by the
// gateway where each caller brings their own bearer token.
type ContextAuth struct{}

func (ContextAuth) CurrentUser(ctx context.Context) (*domain.User, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrAuthenticationRequired
	}
	return user, nil
}

func (ContextAuth) AccessToken(ctx context.Context) (string, error) {
	b, ok := ctx.Value(bearerKey{}).(bearer)
	if !ok || b.token == "" {
		return "", domain.ErrAuthenticationRequired
	}
	return b.token, nil
}

var _ Authenticator = ContextAuth{}
