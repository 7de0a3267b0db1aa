package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"personastudio/internal/domain"
)

// cognitoAPI is the subset of the Cognito user pool client in use.
type cognitoAPI interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
}

// Cognito implements Provider against an AWS Cognito user pool app client.
type Cognito struct {
	api      cognitoAPI
	clientID string
}

// NewCognito builds a provider for the given region and app client. The user
// pool APIs used here are unauthenticated, so no AWS credentials are loaded.
func NewCognito(ctx context.Context, region, clientID string) (*Cognito, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("identity: user pool client id is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("identity: load aws config: %w", err)
	}
	return &Cognito{api: cip.NewFromConfig(cfg), clientID: clientID}, nil
}

func (c *Cognito) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	out, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(Username(email)),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(strings.TrimSpace(email))},
			{Name: aws.String("name"), Value: aws.String(strings.TrimSpace(name))},
		},
	})
	if err != nil {
		return nil, providerError(err)
	}
	return &SignUpResult{UserSub: aws.ToString(out.UserSub), UserConfirmed: out.UserConfirmed}, nil
}

func (c *Cognito) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(Username(email)),
		ConfirmationCode: aws.String(strings.TrimSpace(code)),
	})
	return providerError(err)
}

func (c *Cognito) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	return c.initiate(ctx, types.AuthFlowTypeUserPasswordAuth, map[string]string{
		"USERNAME": Username(email),
		"PASSWORD": password,
	})
}

func (c *Cognito) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	tokens, err := c.initiate(ctx, types.AuthFlowTypeRefreshTokenAuth, map[string]string{
		"REFRESH_TOKEN": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	// Cognito does not rotate refresh tokens on this flow.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (c *Cognito) initiate(ctx context.Context, flow types.AuthFlowType, params map[string]string) (*Tokens, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       flow,
		ClientId:       aws.String(c.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, providerError(err)
	}
	if out.ChallengeName != "" {
		return nil, &ProviderError{Code: string(out.ChallengeName), Message: "additional sign-in challenge required: " + string(out.ChallengeName)}
	}
	res := out.AuthenticationResult
	if res == nil || aws.ToString(res.AccessToken) == "" {
		return nil, errors.New("identity: provider returned no tokens")
	}
	return &Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    time.Duration(res.ExpiresIn) * time.Second,
	}, nil
}

func (c *Cognito) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)})
	return providerError(err)
}

func (c *Cognito) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, providerError(err)
	}
	user := &domain.User{}
	for _, attr := range out.UserAttributes {
		value := aws.ToString(attr.Value)
		switch aws.ToString(attr.Name) {
		case "sub":
			user.Sub = value
		case "email":
			user.Email = value
		case "name":
			user.Name = value
		case "email_verified":
			user.EmailVerified = value == "true"
		}
	}
	if user.Sub == "" {
		user.Sub = aws.ToString(out.Username)
	}
	return user, nil
}

func (c *Cognito) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(Username(email)),
	})
	return providerError(err)
}

func (c *Cognito) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	_, err := c.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(Username(email)),
		ConfirmationCode: aws.String(strings.TrimSpace(code)),
		Password:         aws.String(newPassword),
	})
	return providerError(err)
}

func providerError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
	}
	return fmt.Errorf("identity: %w", err)
}

var _ Provider = (*Cognito)(nil)
