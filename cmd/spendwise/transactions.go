package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/ofx"
	"github.com/HarshGadhecha/SpendWise/internal/store"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List and record transactions",
		RunE:    runTransactionList,
	}
	cmd.Flags().String("wallet", "", "only this wallet")
	cmd.Flags().String("type", "", "only income or expense")
	cmd.Flags().String("category", "", "only this category")
	cmd.Flags().Int("limit", 20, "show at most this many (0 for all)")

	add := &cobra.Command{
		Use:   "add <amount> <category>",
		Short: "Record a transaction",
		Long: `Record a transaction. The wallet balance moves by the amount and expenses
count against every budget covering the category on that date.

Categories: ` + categoryList(),
		Args: cobra.ExactArgs(2),
		RunE: runTransactionAdd,
	}
	add.Flags().String("wallet", "", "wallet id or name (default: the default wallet)")
	add.Flags().Bool("income", false, "record income instead of an expense")
	add.Flags().String("date", "", "date as YYYY-MM-DD (default: now)")
	add.Flags().StringP("description", "d", "", "description")
	add.Flags().String("notes", "", "notes")
	add.Flags().StringSlice("tag", nil, "tags")
	add.Flags().String("repeat", "", "recurrence: daily, weekly, monthly, quarterly or yearly")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and undo its effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveTransaction(a.state, args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteTransaction(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Transaction deleted"))
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions from an OFX or QFX statement",
		Long: `Import every transaction in an OFX or QFX statement into one wallet.
Lines imported before are skipped, so the same statement can be imported again
after the bank adds to it.`,
		Args: cobra.ExactArgs(1),
		RunE: runTransactionImport,
	}
	importCmd.Flags().String("wallet", "", "wallet id or name (default: the default wallet)")

	cmd.AddCommand(add, importCmd, remove)
	return cmd
}

func runTransactionList(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	walletRef, _ := flags.GetString("wallet")
	kind, _ := flags.GetString("type")
	category, _ := flags.GetString("category")
	limit, _ := flags.GetInt("limit")

	return withSession(cmd.Context(), func(a *app) error {
		walletID := ""
		if walletRef != "" {
			w, err := resolveWallet(a.state, a.session.UserID(), walletRef)
			if err != nil {
				return err
			}
			walletID = w.ID
		}
		txs := a.state.Transactions.Filter(func(t model.Transaction) bool {
			return (walletID == "" || t.WalletID == walletID) &&
				(kind == "" || string(t.Type) == kind) &&
				(category == "" || string(t.Category) == category)
		})
		if limit > 0 && len(txs) > limit {
			txs = txs[:limit]
		}
		renderTransactions(cmd.OutOrStdout(), a.state, txs)
		return nil
	})
}

func runTransactionAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	walletRef, _ := flags.GetString("wallet")
	income, _ := flags.GetBool("income")
	dateFlag, _ := flags.GetString("date")
	description, _ := flags.GetString("description")
	notes, _ := flags.GetString("notes")
	tags, _ := flags.GetStringSlice("tag")
	repeat, _ := flags.GetString("repeat")

	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	tx := model.Transaction{
		Type:        model.TransactionExpense,
		Category:    model.Category(args[1]),
		Amount:      amount,
		Description: description,
		Notes:       notes,
		Tags:        tags,
	}
	if income {
		tx.Type = model.TransactionIncome
	}
	if dateFlag != "" {
		if tx.Date, err = parseDate(dateFlag); err != nil {
			return err
		}
	}
	if repeat != "" {
		tx.IsRecurring = true
		tx.RecurringPattern = &model.RecurringPattern{Frequency: model.Frequency(repeat), Interval: 1}
	}

	return withSession(ctx, func(a *app) error {
		w, err := resolveWallet(a.state, a.session.UserID(), walletRef)
		if err != nil {
			return err
		}
		tx.WalletID = w.ID
		saved, err := a.ledger.AddTransaction(ctx, tx)
		if err != nil {
			return err
		}
		balance, _ := a.state.Wallets.Get(w.ID)
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recorded %s %s in %s, balance %s",
			saved.Type, saved.Amount.StringFixed(2), w.Name, balance.Balance.StringFixed(2))))
		for _, b := range a.state.Budgets.Covering(saved.UserID, saved.Category, saved.Date) {
			if b.IsAlert() {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("Budget %s is at %s%%", b.Name, b.Percentage().StringFixed(0))))
			}
		}
		return nil
	})
}

func runTransactionImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	walletRef, _ := cmd.Flags().GetString("wallet")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open statement: %w", err)
	}
	defer f.Close()

	statements, err := ofx.Parse(f)
	if err != nil {
		return err
	}

	return withSession(ctx, func(a *app) error {
		out := cmd.OutOrStdout()
		w, err := resolveWallet(a.state, a.session.UserID(), walletRef)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, t := range a.state.Transactions.ByWallet(w.ID) {
			if id, ok := ofx.FITID(t); ok {
				seen[id] = true
			}
		}

		var pending []model.Transaction
		for _, s := range statements {
			if s.Currency != "" && !strings.EqualFold(s.Currency, w.Currency) {
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Account %s is in %s but %s is in %s; amounts are imported as is",
					s.AccountID, s.Currency, w.Name, w.Currency)))
			}
			for _, t := range s.Transactions {
				id, _ := ofx.FITID(t)
				if seen[id] {
					continue
				}
				seen[id] = true
				t.WalletID = w.ID
				pending = append(pending, t)
			}
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, cli.FormatInfo("Nothing new to import"))
			return nil
		}

		progress := cli.NewProgress(cmd.ErrOrStderr(), len(pending), "Importing")
		for i, t := range pending {
			if _, err := a.ledger.AddTransaction(ctx, t); err != nil {
				return fmt.Errorf("failed to import %q: %w", t.Description, err)
			}
			progress.Step("Importing", i+1)
		}

		balance, _ := a.state.Wallets.Get(w.ID)
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d transactions into %s, balance %s",
			len(pending), w.Name, balance.Balance.StringFixed(2))))
		return nil
	})
}

func resolveTransaction(st *store.State, ref string) (string, error) {
	return resolveID(st.Transactions.Collection, "transaction", ref)
}

func renderTransactions(w io.Writer, st *store.State, txs []model.Transaction) {
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		wallet, _ := st.Wallets.Get(t.WalletID)
		amount := t.SignedAmount()
		rows = append(rows, []string{
			shortID(t.ID),
			formatDate(t.Date),
			t.Category.DisplayName(),
			orDash(wallet.Name),
			cli.FormatAmount(amount, wallet.Currency),
			t.Description,
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Transactions"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Date", "Category", "Wallet", "Amount", "Description"}, rows))
}

func categoryList() string {
	names := make([]string, 0, len(model.IncomeCategories)+len(model.ExpenseCategories))
	for _, c := range model.ExpenseCategories {
		names = append(names, string(c))
	}
	for _, c := range model.IncomeCategories {
		names = append(names, string(c)+" (income)")
	}
	return strings.Join(names, ", ")
}
