// Package cli is the studio command line: account flows, prompt helpers,
// image generation, the persona composer and the gallery.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"personastudio/internal/apiclient"
	"personastudio/internal/config"
	"personastudio/internal/generations"
	"personastudio/internal/identity"
	"personastudio/internal/infra"
)

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the clients built from them.
type RootOptions struct {
	ConfigPath string
	APIURL     string
	Verbose    bool
	Format     string

	// NewProvider builds the identity backend. Defaults to Cognito.
	NewProvider func(ctx context.Context, p *config.Profile) (identity.Provider, error)

	once    sync.Once
	initErr error
	profile *config.Profile
	logger  infra.Logger
	api     *apiclient.Client

	authOnce sync.Once
	authErr  error
	auth     *identity.Client
	gallery  *generations.Client
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Persona studio from the terminal",
		Long:  "Create AI personas, place products with them, and manage the resulting gallery.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "profile file (default $XDG_CONFIG_HOME/personastudio/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "remote API base URL (overrides profile)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		newSignUpCommand(opts),
		newConfirmCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoAmICommand(opts),
		newForgotPasswordCommand(opts),
		newResetPasswordCommand(opts),
		newEnhanceCommand(opts),
		newSurpriseCommand(opts),
		newCharacterCommand(opts),
		newGenerateCommand(opts),
		newComposeCommand(opts),
		newGalleryCommand(opts),
		newExploreCommand(opts),
		newModelsCommand(opts),
	)
	return cmd
}

func (o *RootOptions) init() error {
	o.once.Do(func() {
		prof, err := config.Load(o.ConfigPath)
		if err != nil {
			o.initErr = err
			return
		}
		if o.APIURL != "" {
			prof.APIBaseURL = o.APIURL
		}
		o.profile = prof
		o.logger = infra.NewCLILogger(o.Verbose)
		o.api, o.initErr = apiclient.NewClient(apiclient.Options{
			BaseURL:        prof.APIBaseURL,
			EditPath:       prof.APIEditPath,
			Logger:         &o.logger,
			RequestTimeout: prof.APITimeout,
		})
	})
	return o.initErr
}

// remote returns the unauthenticated API client.
func (o *RootOptions) remote() (*apiclient.Client, error) {
	if err := o.init(); err != nil {
		return nil, err
	}
	return o.api, nil
}

// account returns the identity client backed by the session file, and the
// gallery client that authenticates through it.
func (o *RootOptions) account(ctx context.Context) (*identity.Client, *generations.Client, error) {
	if err := o.init(); err != nil {
		return nil, nil, err
	}
	o.authOnce.Do(func() {
		newProvider := o.NewProvider
		if newProvider == nil {
			newProvider = cognitoProvider
		}
		provider, err := newProvider(ctx, o.profile)
		if err != nil {
			o.authErr = err
			return
		}
		store, err := identity.NewFileStore(o.profile.SessionFile)
		if err != nil {
			o.authErr = err
			return
		}
		o.auth = identity.NewClient(provider, store, &o.logger)
		o.gallery, o.authErr = generations.NewClient(generations.Options{
			BaseURL:        o.profile.APIBaseURL,
			Logger:         &o.logger,
			RequestTimeout: o.profile.APITimeout,
		}, o.auth)
	})
	return o.auth, o.gallery, o.authErr
}

func cognitoProvider(ctx context.Context, p *config.Profile) (identity.Provider, error) {
	if p.UserPoolClientID == "" {
		return nil, fmt.Errorf("identity is not configured: set user_pool_client_id in the profile or AWS_USER_POOL_CLIENT_ID")
	}
	return identity.NewCognito(ctx, p.Region, p.UserPoolClientID)
}

// emit writes v as JSON when --format=json, otherwise calls text.
func (o *RootOptions) emit(w io.Writer, v any, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
