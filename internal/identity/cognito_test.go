package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"personastudio/internal/domain"
)

type stubCognito struct {
	signUp     *cip.SignUpInput
	initiate   *cip.InitiateAuthInput
	confirm    *cip.ConfirmForgotPasswordInput
	authResult *cip.InitiateAuthOutput
	err        error
}

func (s *stubCognito) SignUp(ctx context.Context, in *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	s.signUp = in
	if s.err != nil {
		return nil, s.err
	}
	return &cip.SignUpOutput{UserSub: aws.String("sub-1")}, nil
}

func (s *stubCognito) ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, _ ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error) {
	return &cip.ConfirmSignUpOutput{}, s.err
}

func (s *stubCognito) InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	s.initiate = in
	if s.err != nil {
		return nil, s.err
	}
	return s.authResult, nil
}

func (s *stubCognito) GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, _ ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error) {
	return &cip.GlobalSignOutOutput{}, s.err
}

func (s *stubCognito) GetUser(ctx context.Context, in *cip.GetUserInput, _ ...func(*cip.Options)) (*cip.GetUserOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cip.GetUserOutput{
		Username: aws.String("ana_example_com"),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("sub"), Value: aws.String("sub-1")},
			{Name: aws.String("email"), Value: aws.String("ana@example.com")},
			{Name: aws.String("name"), Value: aws.String("Ana")},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
	}, nil
}

func (s *stubCognito) ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, _ ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error) {
	return &cip.ForgotPasswordOutput{}, s.err
}

func (s *stubCognito) ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, _ ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error) {
	s.confirm = in
	return &cip.ConfirmForgotPasswordOutput{}, s.err
}

func TestCognitoSignUpAttributes(t *testing.T) {
	api := &stubCognito{}
	c := &Cognito{api: api, clientID: "client-1"}

	res, err := c.SignUp(context.Background(), "Ana@Example.com", "secret", "Ana")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.UserSub != "sub-1" {
		t.Fatalf("UserSub = %q, want sub-1", res.UserSub)
	}
	if got := aws.ToString(api.signUp.Username); got != "ana_example_com" {
		t.Fatalf("Username = %q, want ana_example_com", got)
	}
	if got := aws.ToString(api.signUp.ClientId); got != "client-1" {
		t.Fatalf("ClientId = %q, want client-1", got)
	}
	attrs := map[string]string{}
	for _, a := range api.signUp.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	if attrs["email"] != "Ana@Example.com" || attrs["name"] != "Ana" {
		t.Fatalf("attributes = %#v", attrs)
	}
}

func TestCognitoSignInTokens(t *testing.T) {
	api := &stubCognito{authResult: &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			AccessToken:  aws.String("access"),
			IdToken:      aws.String("id"),
			RefreshToken: aws.String("refresh"),
			ExpiresIn:    3600,
		},
	}}
	c := &Cognito{api: api, clientID: "client-1"}

	tokens, err := c.SignIn(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if tokens.AccessToken != "access" || tokens.ExpiresIn.Seconds() != 3600 {
		t.Fatalf("tokens = %+v", tokens)
	}
	if api.initiate.AuthFlow != types.AuthFlowTypeUserPasswordAuth {
		t.Fatalf("AuthFlow = %q", api.initiate.AuthFlow)
	}
	if api.initiate.AuthParameters["USERNAME"] != "ana_example_com" {
		t.Fatalf("USERNAME = %q", api.initiate.AuthParameters["USERNAME"])
	}
}

func TestCognitoRefreshKeepsRefreshToken(t *testing.T) {
	api := &stubCognito{authResult: &cip.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{AccessToken: aws.String("access-2"), IdToken: aws.String("id-2")},
	}}
	c := &Cognito{api: api, clientID: "client-1"}

	tokens, err := c.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tokens.RefreshToken != "refresh-1" {
		t.Fatalf("RefreshToken = %q, want refresh-1", tokens.RefreshToken)
	}
	if api.initiate.AuthFlow != types.AuthFlowTypeRefreshTokenAuth {
		t.Fatalf("AuthFlow = %q", api.initiate.AuthFlow)
	}
}

func TestCognitoChallengeIsError(t *testing.T) {
	api := &stubCognito{authResult: &cip.InitiateAuthOutput{ChallengeName: types.ChallengeNameTypeNewPasswordRequired}}
	c := &Cognito{api: api, clientID: "client-1"}
	if _, err := c.SignIn(context.Background(), "ana@example.com", "secret"); err == nil {
		t.Fatalf("expected challenge error")
	}
}

func TestCognitoErrorsCarryProviderMessage(t *testing.T) {
	api := &stubCognito{err: &smithy.GenericAPIError{Code: "UsernameExistsException", Message: "An account with the given email already exists."}}
	c := &Cognito{api: api, clientID: "client-1"}

	_, err := c.SignUp(context.Background(), "ana@example.com", "secret", "Ana")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %T, want *ProviderError", err)
	}
	if perr.Error() != "An account with the given email already exists." {
		t.Fatalf("message = %q", perr.Error())
	}
	if errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("existing-user error should not read as authentication required")
	}

	api.err = &smithy.GenericAPIError{Code: "NotAuthorizedException", Message: "Access Token has been revoked"}
	if _, err := c.GetUser(context.Background(), "tok"); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("revoked token err = %v, want ErrAuthenticationRequired", err)
	}
}

func TestCognitoGetUserAttributes(t *testing.T) {
	c := &Cognito{api: &stubCognito{}, clientID: "client-1"}
	user, err := c.GetUser(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	want := domain.User{Sub: "sub-1", Email: "ana@example.com", Name: "Ana", EmailVerified: true}
	if *user != want {
		t.Fatalf("user = %+v, want %+v", *user, want)
	}
}

func TestCognitoConfirmForgotPassword(t *testing.T) {
	api := &stubCognito{}
	c := &Cognito{api: api, clientID: "client-1"}
	if err := c.ConfirmForgotPassword(context.Background(), "ana@example.com", " 123456 ", "n3w"); err != nil {
		t.Fatalf("ConfirmForgotPassword: %v", err)
	}
	if got := aws.ToString(api.confirm.ConfirmationCode); got != "123456" {
		t.Fatalf("ConfirmationCode = %q, want 123456", got)
	}
	if got := aws.ToString(api.confirm.Username); got != "ana_example_com" {
		t.Fatalf("Username = %q", got)
	}
}
