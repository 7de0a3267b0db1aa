package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"personastudio/internal/domain"
)

func mintIDToken(t *testing.T, sub, email, name string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            sub,
		"email":          email,
		"name":           name,
		"email_verified": true,
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return token
}

type stubProvider struct {
	mu           sync.Mutex
	tokens       *Tokens
	refreshed    *Tokens
	refreshErr   error
	signOutErr   error
	refreshCalls int
	signOutCalls int
	signUpEmail  string
}

func (s *stubProvider) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signUpEmail = email
	return &SignUpResult{UserSub: "sub-1"}, nil
}

func (s *stubProvider) ConfirmSignUp(ctx context.Context, email, code string) error { return nil }

func (s *stubProvider) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	if password != "secret" {
		return nil, &ProviderError{Code: "NotAuthorizedException", Message: "Incorrect username or password."}
	}
	return s.tokens, nil
}

func (s *stubProvider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshed, nil
}

func (s *stubProvider) SignOut(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOutCalls++
	return s.signOutErr
}

func (s *stubProvider) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	return &domain.User{Sub: "sub-1"}, nil
}

func (s *stubProvider) ForgotPassword(ctx context.Context, email string) error { return nil }

func (s *stubProvider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	return nil
}

func TestSignInStoresSessionFromIDToken(t *testing.T) {
	provider := &stubProvider{tokens: &Tokens{
		AccessToken:  "access-1",
		IDToken:      mintIDToken(t, "sub-1", "ana@example.com", "Ana"),
		RefreshToken: "refresh-1",
		ExpiresIn:    time.Hour,
	}}
	store := NewMemoryStore()
	client := NewClient(provider, store, nil)

	session, err := client.SignIn(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	want := domain.User{Sub: "sub-1", Email: "ana@example.com", Name: "Ana", EmailVerified: true}
	if session.User != want {
		t.Fatalf("User = %+v, want %+v", session.User, want)
	}
	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("CurrentUser email = %q", user.Email)
	}
	token, err := client.AccessToken(context.Background())
	if err != nil || token != "access-1" {
		t.Fatalf("AccessToken = %q, %v; want access-1", token, err)
	}
}

func TestSignInWrongPasswordSurfacesProviderMessage(t *testing.T) {
	client := NewClient(&stubProvider{}, nil, nil)
	_, err := client.SignIn(context.Background(), "ana@example.com", "nope")
	if err == nil || err.Error() != "Incorrect username or password." {
		t.Fatalf("err = %v, want provider message", err)
	}
	if !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("rejected credentials should match ErrAuthenticationRequired")
	}
}

func TestCurrentUserWithoutSession(t *testing.T) {
	client := NewClient(&stubProvider{}, nil, nil)
	if _, err := client.CurrentUser(context.Background()); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("err = %v, want ErrAuthenticationRequired", err)
	}
}

func TestExpiredSessionRefreshesOnce(t *testing.T) {
	provider := &stubProvider{refreshed: &Tokens{
		AccessToken: "access-2",
		IDToken:     mintIDToken(t, "sub-1", "ana@example.com", "Ana"),
		ExpiresIn:   time.Hour,
	}}
	store := NewMemoryStore()
	_ = store.Save(context.Background(), &Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		User:         domain.User{Sub: "sub-1"},
	})
	client := NewClient(provider, store, nil)

	token, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "access-2" {
		t.Fatalf("token = %q, want access-2", token)
	}
	if _, err := client.AccessToken(context.Background()); err != nil {
		t.Fatalf("second AccessToken: %v", err)
	}
	if provider.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", provider.refreshCalls)
	}
	saved, _ := store.Load(context.Background())
	if saved.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token = %q, want preserved refresh-1", saved.RefreshToken)
	}
}

func TestRejectedRefreshClearsSession(t *testing.T) {
	provider := &stubProvider{refreshErr: &ProviderError{Code: "NotAuthorizedException", Message: "Refresh Token has expired"}}
	store := NewMemoryStore()
	_ = store.Save(context.Background(), &Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	client := NewClient(provider, store, nil)

	if _, err := client.CurrentUser(context.Background()); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("err = %v, want ErrAuthenticationRequired", err)
	}
	if s, _ := store.Load(context.Background()); s != nil {
		t.Fatalf("session should be cleared after rejected refresh")
	}
}

func TestSignOutClearsEvenWhenRemoteFails(t *testing.T) {
	provider := &stubProvider{signOutErr: errors.New("network down")}
	store := NewMemoryStore()
	_ = store.Save(context.Background(), &Session{AccessToken: "access-1"})
	client := NewClient(provider, store, nil)

	if err := client.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if provider.signOutCalls != 1 {
		t.Fatalf("sign-out calls = %d, want 1", provider.signOutCalls)
	}
	if s, _ := store.Load(context.Background()); s != nil {
		t.Fatalf("session still stored after SignOut")
	}
}

func TestAccountFlowMessages(t *testing.T) {
	provider := &stubProvider{}
	client := NewClient(provider, nil, nil)
	ctx := context.Background()

	res, err := client.SignUp(ctx, " ana@example.com ", "secret", "Ana")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.Message != MessageVerificationSent {
		t.Fatalf("SignUp message = %q", res.Message)
	}
	if provider.signUpEmail != "ana@example.com" {
		t.Fatalf("SignUp email = %q, want trimmed", provider.signUpEmail)
	}
	if msg, _ := client.ConfirmSignUp(ctx, "ana@example.com", "123456"); msg != MessageAccountVerified {
		t.Fatalf("ConfirmSignUp message = %q", msg)
	}
	if msg, _ := client.ForgotPassword(ctx, "ana@example.com"); msg != MessageResetCodeSent {
		t.Fatalf("ForgotPassword message = %q", msg)
	}
	if msg, _ := client.ConfirmPassword(ctx, "ana@example.com", "123456", "n3w"); msg != MessagePasswordReset {
		t.Fatalf("ConfirmPassword message = %q", msg)
	}
	if _, err := client.ConfirmSignUp(ctx, "ana@example.com", " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty code err = %v, want ErrValidation", err)
	}
}

func TestUsername(t *testing.T) {
	cases := map[string]string{
		"Ana.Lopez@Example.com": "ana_lopez_example_com",
		"judge@devpost.com":     "judge_devpost_com",
		"  x@y.z ":              "x_y_z",
	}
	for in, want := range cases {
		if got := Username(in); got != want {
			t.Fatalf("Username(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContextAuth(t *testing.T) {
	var auth ContextAuth
	if _, err := auth.CurrentUser(context.Background()); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("empty context err = %v", err)
	}
	ctx := WithBearer(context.Background(), domain.User{Sub: "sub-1", Email: "ana@example.com"}, "tok")
	user, err := auth.CurrentUser(ctx)
	if err != nil || user.Sub != "sub-1" {
		t.Fatalf("CurrentUser = %+v, %v", user, err)
	}
	if token, _ := auth.AccessToken(ctx); token != "tok" {
		t.Fatalf("AccessToken = %q, want tok", token)
	}
}
