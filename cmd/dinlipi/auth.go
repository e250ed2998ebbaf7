package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func authCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Sign in, sign out and manage your password"}

	var email, password, name string

	signup := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password required")
			}
			var fullName *string
			if name != "" {
				fullName = &name
			}
			if err := a.sess.SignUp(cmd.Context(), email, password, fullName); err != nil {
				return err
			}
			cmd.Printf("Signed up as %s\n", a.sess.Session().User.Email)
			return nil
		},
	}
	signup.Flags().StringVar(&email, "email", "", "Email (required)")
	signup.Flags().StringVar(&password, "password", "", "Password (required)")
	signup.Flags().StringVar(&name, "name", "", "Full name")

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password required")
			}
			if err := a.sess.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}
			cmd.Printf("Signed in as %s\n", a.sess.Session().User.Email)
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "Email (required)")
	login.Flags().StringVar(&password, "password", "", "Password (required)")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out of this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.SignOut(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out")
			return nil
		},
	}

	logoutAll := &cobra.Command{
		Use:   "logout-all",
		Short: "Sign out of every device and clear local credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.SignOutEverywhere(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out everywhere")
			return nil
		},
	}

	var redirect, token string
	reset := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a reset link, or set a new password with --token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token != "" {
				if password == "" {
					return errors.New("--password required with --token")
				}
				if err := a.sess.ConfirmPasswordReset(cmd.Context(), token, password); err != nil {
					return err
				}
				cmd.Println("Password changed; you are signed in")
				return nil
			}
			if email == "" {
				return errors.New("--email required")
			}
			if err := a.api.RequestPasswordReset(cmd.Context(), email, redirect); err != nil {
				return err
			}
			cmd.Println("If the address is registered, a reset link is on its way")
			return nil
		},
	}
	reset.Flags().StringVar(&email, "email", "", "Account email")
	reset.Flags().StringVar(&redirect, "redirect", "", "Page the reset link should open")
	reset.Flags().StringVar(&token, "token", "", "Reset token from the link")
	reset.Flags().StringVar(&password, "password", "", "New password")

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if password == "" {
				return errors.New("--password required")
			}
			return a.api.UpdatePassword(cmd.Context(), password)
		},
	}
	passwd.Flags().StringVar(&password, "password", "", "New password (required)")

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			info, err := a.api.Session(cmd.Context())
			if err != nil {
				return fmt.Errorf("check session: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}

	cmd.AddCommand(signup, login, logout, logoutAll, reset, passwd, whoami)
	return cmd
}
