package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/ledger"
)

func summaryCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show balances, alerts and what is due",
		Long: `Show balances, alerts and what is due.

With --follow the summary is printed again whenever the document store
reports a change, until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				out := cmd.OutOrStdout()
				renderSummary(out, a.ledger.Summary(time.Now().UTC()))
				if !follow {
					return nil
				}
				return followSummary(ctx, a, out)
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing the summary as the data changes")
	return cmd
}

// followSummary re-renders the summary after live changes until ctx is done.
// Bursts of snapshots are rendered once.
func followSummary(ctx context.Context, a *app, out io.Writer) error {
	changed := make(chan struct{}, 1)
	watch, err := a.ledger.Watch(ctx, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer watch.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			renderSummary(out, a.ledger.Summary(time.Now().UTC()))
		}
	}
}

func renderSummary(w io.Writer, s ledger.Summary) {
	var b strings.Builder

	currencies := make([]string, 0, len(s.BalanceByCurrency))
	for c := range s.BalanceByCurrency {
		currencies = append(currencies, c)
	}
	slices.Sort(currencies)
	fmt.Fprintf(&b, "Wallets:      %d\n", s.Wallets)
	for _, c := range currencies {
		fmt.Fprintf(&b, "  %s\n", cli.FormatAmount(s.BalanceByCurrency[c], c))
	}
	fmt.Fprintf(&b, "Transactions: %d (income %s, expense %s)\n", s.Transactions, s.Income.StringFixed(2), s.Expense.StringFixed(2))
	fmt.Fprintf(&b, "Budgets:      %s of %s spent\n", s.Spent.StringFixed(2), s.Budgeted.StringFixed(2))
	fmt.Fprintf(&b, "Goals:        %s of %s saved (%d active, %d completed)\n",
		s.Saved.StringFixed(2), s.SavingsTarget.StringFixed(2), s.ActiveGoals, s.CompletedGoals)
	fmt.Fprintf(&b, "Bills:        %s unpaid\n", s.Unpaid.StringFixed(2))
	fmt.Fprintf(&b, "Investments:  %s invested, worth %s (%s)\n",
		s.Invested.StringFixed(2), s.Portfolio.StringFixed(2), cli.FormatAmount(s.Gains, ""))
	fmt.Fprintf(&b, "Coverage:     %s", s.Coverage.StringFixed(2))
	fmt.Fprintln(w, cli.RenderBox(cli.ChartIcon+" Summary "+s.GeneratedAt.Format(dateLayout), b.String()))

	for _, budget := range s.Alerts {
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("Budget %s is at %s%%", budget.Name, budget.Percentage().StringFixed(0))))
	}
	for _, bill := range s.OverdueBills {
		fmt.Fprintln(w, cli.FormatError(fmt.Sprintf("%s (%s) was due %s", bill.Name, bill.Amount.StringFixed(2), formatDate(bill.DueDate))))
	}
	for _, bill := range s.UpcomingBills {
		if bill.NeedsReminder(s.GeneratedAt) {
			fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("%s (%s) is due %s", bill.Name, bill.Amount.StringFixed(2), formatDate(bill.DueDate))))
		}
	}
	for _, p := range s.DuePremiums {
		fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("Premium for %s (%s) is due %s", p.PolicyName, p.PremiumAmount.StringFixed(2), formatDate(p.NextPremiumDate))))
	}
}
