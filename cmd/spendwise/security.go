package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

func securityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "security",
		Short: "Manage the app PIN and biometric unlock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				pin, err := a.security.IsPinSet(ctx)
				if err != nil {
					return err
				}
				bio, err := a.security.IsBiometricEnabled(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s PIN:       %t\n", cli.LockIcon, pin)
				fmt.Fprintf(out, "%s Biometric: %t\n", cli.LockIcon, bio)
				return nil
			})
		},
	}

	setPin := &cobra.Command{
		Use:   "set-pin <pin>",
		Short: "Set a 4 to 6 digit PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				if err := a.security.SetPin(ctx, args[0]); err != nil {
					return err
				}
				if err := setSecurityFlags(cmd, a, true); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PIN set"))
				return nil
			})
		},
	}

	checkPin := &cobra.Command{
		Use:   "check-pin <pin>",
		Short: "Check a PIN against the stored one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				ok, err := a.security.VerifyPin(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return common.NewUserError("PIN does not match", common.ErrValidation)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PIN matches"))
				return nil
			})
		},
	}

	removePin := &cobra.Command{
		Use:   "remove-pin",
		Short: "Remove the PIN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				if err := a.security.RemovePin(ctx); err != nil {
					return err
				}
				if err := setSecurityFlags(cmd, a, false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PIN removed"))
				return nil
			})
		},
	}

	biometric := &cobra.Command{
		Use:       "biometric <on|off>",
		Short:     "Turn biometric unlock on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				on := args[0] == "on"
				var err error
				switch args[0] {
				case "on":
					err = a.security.EnableBiometric(ctx)
				case "off":
					err = a.security.DisableBiometric(ctx)
				default:
					return fmt.Errorf("%w: expected on or off, got %q", common.ErrValidation, args[0])
				}
				if err != nil {
					return err
				}
				if _, err := a.session.UpdateProfile(ctx, model.UserPatch{BiometricEnabled: &on}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Biometric unlock "+args[0]))
				return nil
			})
		},
	}

	cmd.AddCommand(setPin, checkPin, removePin, biometric)
	return cmd
}

// setSecurityFlags mirrors the PIN state onto the profile.
func setSecurityFlags(cmd *cobra.Command, a *app, pin bool) error {
	_, err := a.session.UpdateProfile(cmd.Context(), model.UserPatch{PinEnabled: &pin, SecurityEnabled: &pin})
	return err
}
