package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dinlipi/internal/localstate"
	"dinlipi/internal/models"
)

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "profile",
		Short:             "Your account profile",
		PersistentPreRunE: a.signedIn,
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if p == nil {
				return errors.New("no profile yet")
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	var name, language, theme, fontSize string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change profile fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd models.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				upd.FullName = &name
			}
			if flags.Changed("language") {
				upd.PreferredLanguage = &language
			}
			if flags.Changed("theme") {
				upd.Theme = &theme
			}
			if flags.Changed("font-size") {
				upd.FontSize = &fontSize
			}
			if err := upd.Validate(); err != nil {
				return err
			}
			p, err := a.api.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			// keep this device in step with the account
			if upd.Theme != nil {
				if err := a.state.SetTheme(cmd.Context(), p.Theme); err != nil {
					return err
				}
			}
			if upd.FontSize != nil {
				if err := a.state.SetFontSize(cmd.Context(), p.FontSize); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	set.Flags().StringVar(&name, "name", "", "Full name")
	set.Flags().StringVar(&language, "language", "", "Preferred language, e.g. bn")
	set.Flags().StringVar(&theme, "theme", "", "light or dark")
	set.Flags().StringVar(&fontSize, "font-size", "", "small, medium or large")

	cmd.AddCommand(show, set)
	return cmd
}

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Display settings stored on this device"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show local settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			theme, err := a.state.Theme(cmd.Context())
			if err != nil {
				return err
			}
			size, err := a.state.FontSize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "theme: %s\nfont-size: %s\n", theme, size)
			return nil
		},
	}

	theme := &cobra.Command{
		Use:       "theme <light|dark>",
		Short:     "Set the color theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{models.ThemeLight, models.ThemeDark},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.state.SetTheme(cmd.Context(), args[0])
		},
	}

	fontSize := &cobra.Command{
		Use:       "font-size <small|medium|large>",
		Short:     "Set the text size",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{models.FontSmall, models.FontMedium, models.FontLarge},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.state.SetFontSize(cmd.Context(), args[0])
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the display settings and use the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range []string{localstate.KeyTheme, localstate.KeyFontSize} {
				if err := a.state.Delete(cmd.Context(), k); err != nil {
					return err
				}
			}
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the keys stored on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.state.Keys(cmd.Context(), "")
			if err != nil {
				return err
			}
			for _, k := range ks {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.AddCommand(show, theme, fontSize, reset, keys)
	return cmd
}
