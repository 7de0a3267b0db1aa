package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"personastudio/internal/domain"
)

type credentialFlags struct {
	email       string
	password    string
	name        string
	code        string
	newPassword string
}

func newSignUpCommand(opts *RootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			res, err := auth.SignUp(cmd.Context(), f.email, f.password, f.name)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintln(w, res.Message)
			})
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	cmd.Flags().StringVar(&f.name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newConfirmCommand(opts *RootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Verify a new account with the emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := auth.ConfirmSignUp(cmd.Context(), f.email, f.code)
			if err != nil {
				return err
			}
			return printMessage(opts, cmd, msg)
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.code, "code", "", "verification code")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCommand(opts *RootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			session, err := auth.SignIn(cmd.Context(), f.email, f.password)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), session.User, func(w io.Writer) {
				fmt.Fprintf(w, "Signed in as %s\n", displayName(session.User))
			})
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			if err := auth.SignOut(cmd.Context()); err != nil {
				return err
			}
			return printMessage(opts, cmd, "Signed out")
		},
	}
}

type whoAmI struct {
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

func newWhoAmICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			session, err := auth.Session(cmd.Context())
			if err != nil {
				return err
			}
			out := whoAmI{User: session.User, ExpiresAt: session.ExpiresAt}
			return opts.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", displayName(session.User), session.User.Sub)
				if !session.ExpiresAt.IsZero() {
					fmt.Fprintf(w, "session expires %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
				}
			})
		},
	}
}

func newForgotPasswordCommand(opts *RootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := auth.ForgotPassword(cmd.Context(), f.email)
			if err != nil {
				return err
			}
			return printMessage(opts, cmd, msg)
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetPasswordCommand(opts *RootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, _, err := opts.account(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := auth.ConfirmPassword(cmd.Context(), f.email, f.code, f.newPassword)
			if err != nil {
				return err
			}
			return printMessage(opts, cmd, msg)
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.code, "code", "", "reset code")
	cmd.Flags().StringVar(&f.newPassword, "new-password", "", "new password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printMessage(opts *RootOptions, cmd *cobra.Command, msg string) error {
	return opts.emit(cmd.OutOrStdout(), map[string]any{"success": true, "message": msg}, func(w io.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name + " <" + u.Email + ">"
	}
	return u.Email
}
