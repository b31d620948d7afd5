package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

func walletsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wallets",
		Aliases: []string{"wallet"},
		Short:   "List and manage wallets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				renderWallets(cmd.OutOrStdout(), a.state.Wallets.All())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a wallet",
		Args:  cobra.ExactArgs(1),
		RunE:  runWalletAdd,
	}
	add.Flags().String("type", string(model.WalletPersonal), "personal, family or secret")
	add.Flags().String("currency", "", "currency (default: profile currency)")
	add.Flags().String("balance", "0", "opening balance")
	add.Flags().Bool("default", false, "make this the default wallet")
	add.Flags().StringSlice("share", nil, "user ids to share a family wallet with")

	update := &cobra.Command{
		Use:   "update <wallet>",
		Short: "Change a wallet",
		Long: `Change a wallet. Making a wallet secret removes it and its transactions
from the document store and keeps them only in encrypted local storage.`,
		Args: cobra.ExactArgs(1),
		RunE: runWalletUpdate,
	}
	update.Flags().String("name", "", "new name")
	update.Flags().String("type", "", "personal, family or secret")
	update.Flags().String("balance", "", "set the balance directly")

	setDefault := &cobra.Command{
		Use:   "default <wallet>",
		Short: "Make a wallet the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				w, err := resolveWallet(a.state, a.session.UserID(), args[0])
				if err != nil {
					return err
				}
				if _, err := a.ledger.SetDefaultWallet(ctx, w.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(w.Name+" is now the default wallet"))
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <wallet>",
		Short: "Delete a wallet and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				w, err := resolveWallet(a.state, a.session.UserID(), args[0])
				if err != nil {
					return err
				}
				n := len(a.state.Transactions.ByWallet(w.ID))
				if err := a.ledger.DeleteWallet(ctx, w.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %s and %d transactions", w.Name, n)))
				return nil
			})
		},
	}

	cmd.AddCommand(add, update, setDefault, remove)
	return cmd
}

func runWalletAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	kind, _ := flags.GetString("type")
	currency, _ := flags.GetString("currency")
	balanceFlag, _ := flags.GetString("balance")
	isDefault, _ := flags.GetBool("default")
	shared, _ := flags.GetStringSlice("share")

	balance, err := parseAmount(balanceFlag)
	if err != nil {
		return err
	}

	return withSession(ctx, func(a *app) error {
		w, err := a.ledger.AddWallet(ctx, model.Wallet{
			Name:       args[0],
			Type:       model.WalletType(kind),
			Currency:   strings.ToUpper(currency),
			Balance:    balance,
			IsDefault:  isDefault,
			SharedWith: shared,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created wallet %s (%s)", w.Name, shortID(w.ID))))
		return nil
	})
}

func runWalletUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	var patch model.WalletPatch
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		patch.Name = &v
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		t := model.WalletType(v)
		patch.Type = &t
	}
	if flags.Changed("balance") {
		v, _ := flags.GetString("balance")
		balance, err := parseAmount(v)
		if err != nil {
			return err
		}
		patch.Balance = &balance
	}

	return withSession(ctx, func(a *app) error {
		w, err := resolveWallet(a.state, a.session.UserID(), args[0])
		if err != nil {
			return err
		}
		updated, err := a.ledger.UpdateWallet(ctx, w.ID, patch)
		if err != nil {
			return err
		}
		renderWallets(cmd.OutOrStdout(), []model.Wallet{updated})
		return nil
	})
}

func renderWallets(w io.Writer, wallets []model.Wallet) {
	rows := make([][]string, 0, len(wallets))
	for _, wallet := range wallets {
		name := wallet.Name
		if wallet.IsDefault {
			name += " *"
		}
		if wallet.IsSecret() {
			name = cli.LockIcon + " " + name
		}
		rows = append(rows, []string{
			shortID(wallet.ID),
			name,
			string(wallet.Type),
			cli.FormatAmount(wallet.Balance, wallet.Currency),
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Wallets"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Name", "Type", "Balance"}, rows))
}
