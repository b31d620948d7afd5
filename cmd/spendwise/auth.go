package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HarshGadhecha/SpendWise/internal/auth"
	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/config"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in and load your data",
		Long: `Sign in as the given user and load their data from the document store.

Credentials are not checked here: the user id comes from whatever identity
provider issued it. With the http remote driver, remote.token must hold a
bearer token for the same user (see 'spendwise token').`,
		Args: cobra.ExactArgs(1),
		RunE: runLogin,
	}
	cmd.Flags().String("email", "", "email address for a new profile")
	cmd.Flags().String("name", "", "display name for a new profile")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")

	return withApp(ctx, func(a *app) error {
		user, err := a.session.SignIn(ctx, service.Identity{UserID: args[0], Email: email, DisplayName: name})
		if err != nil {
			return err
		}
		if err := a.refresh(ctx, nil); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Signed in as %s", displayName(user))))
		if !a.session.IsOnboardingCompleted() {
			fmt.Fprintln(out, cli.FormatInfo("Finish setting up with 'spendwise profile onboard'."))
		}
		return nil
	})
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe local data",
		Long: `Sign out and remove everything stored on this device for the session,
including secret wallets and the PIN. Writes that are still queued are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				if pending, err := a.sync.Pending(ctx); err == nil && pending > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("Discarding %d unsynced writes", pending)))
				}
				if err := a.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed out"))
				return nil
			})
		},
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				user, err := a.session.Require()
				if err != nil {
					return err
				}
				renderProfile(cmd.OutOrStdout(), user, a.session.IsOnboardingCompleted())
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		RunE:  runProfileUpdate(false),
	}
	onboard := &cobra.Command{
		Use:   "onboard",
		Short: "Record onboarding answers and mark onboarding complete",
		RunE:  runProfileUpdate(true),
	}
	for _, c := range []*cobra.Command{set, onboard} {
		c.Flags().String("name", "", "display name")
		c.Flags().String("currency", "", "default currency (ISO 4217)")
		c.Flags().String("theme", "", "theme (light, dark, system)")
		c.Flags().String("user-type", "", "personal, family or business")
		c.Flags().String("income", "", "main income source")
		c.Flags().String("focus", "", "save, reduce_spending, track_bills or shared_finances")
		c.Flags().String("reminders", "", "daily, weekly, important or none")
	}

	deleteAccount := &cobra.Command{
		Use:   "delete",
		Short: "Delete your profile from the document store and sign out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				if err := a.session.DeleteAccount(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Account deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(set, onboard, deleteAccount)
	return cmd
}

func runProfileUpdate(onboarding bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		patch := profilePatch(cmd)
		return withSession(ctx, func(a *app) error {
			var (
				user model.User
				err  error
			)
			if onboarding {
				user, err = a.session.CompleteOnboarding(ctx, patch)
			} else {
				user, err = a.session.UpdateProfile(ctx, patch)
			}
			if err != nil {
				return err
			}
			renderProfile(cmd.OutOrStdout(), user, a.session.IsOnboardingCompleted())
			return nil
		})
	}
}

func profilePatch(cmd *cobra.Command) model.UserPatch {
	var patch model.UserPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		patch.DisplayName = &v
	}
	if flags.Changed("currency") {
		v, _ := flags.GetString("currency")
		v = strings.ToUpper(v)
		patch.Currency = &v
	}
	if flags.Changed("theme") {
		v, _ := flags.GetString("theme")
		theme := model.ThemePreference(v)
		patch.ThemePreference = &theme
	}
	if flags.Changed("user-type") {
		v, _ := flags.GetString("user-type")
		t := model.UserType(v)
		patch.UserType = &t
	}
	if flags.Changed("income") {
		v, _ := flags.GetString("income")
		src := model.IncomeSource(v)
		patch.IncomeSource = &src
	}
	if flags.Changed("focus") {
		v, _ := flags.GetString("focus")
		f := model.Focus(v)
		patch.Focus = &f
	}
	if flags.Changed("reminders") {
		v, _ := flags.GetString("reminders")
		r := model.ReminderPreference(v)
		patch.ReminderPreference = &r
	}
	return patch
}

func renderProfile(w io.Writer, user model.User, onboarded bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:         %s\n", user.ID)
	fmt.Fprintf(&b, "Email:      %s\n", user.Email)
	fmt.Fprintf(&b, "Currency:   %s\n", orDash(user.Currency))
	fmt.Fprintf(&b, "Theme:      %s\n", orDash(string(user.ThemePreference)))
	fmt.Fprintf(&b, "Focus:      %s\n", orDash(string(user.Focus)))
	fmt.Fprintf(&b, "Onboarded:  %t", onboarded)
	fmt.Fprintln(w, cli.RenderBox(displayName(user), b.String()))
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for the document server",
		Long: `Issue a bearer token for the given user, signed with server.jwt_secret.
Clients using the http remote driver send it as remote.token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenManager(cfg.Server.JWTSecret, "", cfg.Server.TokenTTL)
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			token, expires, err := tokens.Issue(service.Identity{UserID: args[0], Email: email, DisplayName: name})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("Expires "+expires.Format("2006-01-02 15:04 MST")))
			return nil
		},
	}
	cmd.Flags().String("email", "", "email claim")
	cmd.Flags().String("name", "", "name claim")
	return cmd
}

func displayName(user model.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.Email != "" {
		return user.Email
	}
	return user.ID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
