package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/store"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budgets",
		Aliases: []string{"budget"},
		Short:   "List and manage budgets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				renderBudgets(cmd.OutOrStdout(), a.state.Budgets.All())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <category> <amount>",
		Short: "Create a budget for an expense category",
		Args:  cobra.ExactArgs(2),
		RunE:  runBudgetAdd,
	}
	add.Flags().String("name", "", "budget name (default: category name)")
	add.Flags().String("period", string(model.PeriodMonthly), "weekly, monthly or yearly")
	add.Flags().String("start", "", "start date as YYYY-MM-DD (default: today)")
	add.Flags().Int("alert", model.DefaultAlertThreshold, "alert threshold in percent")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Budgets.Collection, "budget", args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteBudget(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Budget deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func runBudgetAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	period, _ := flags.GetString("period")
	start, _ := flags.GetString("start")
	alert, _ := flags.GetInt("alert")

	category := model.Category(args[0])
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	if name == "" {
		name = category.DisplayName()
	}
	b := model.Budget{
		Name:           name,
		Category:       category,
		Period:         model.BudgetPeriod(period),
		Amount:         amount,
		AlertThreshold: alert,
	}
	if start != "" {
		if b.StartDate, err = parseDate(start); err != nil {
			return err
		}
	}

	return withSession(ctx, func(a *app) error {
		created, err := a.ledger.AddBudget(ctx, b)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created budget %s until %s", created.Name, formatDate(created.EndDate))))
		return nil
	})
}

func renderBudgets(w io.Writer, budgets []model.Budget) {
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		status := string(b.Status())
		switch b.Status() {
		case model.BudgetExceeded:
			status = cli.ErrorStyle.Render(status)
		case model.BudgetWarning:
			status = cli.WarningStyle.Render(status)
		}
		rows = append(rows, []string{
			shortID(b.ID),
			b.Name,
			string(b.Period),
			b.Spent.StringFixed(2) + " / " + b.Amount.StringFixed(2),
			b.Percentage().StringFixed(0) + "%",
			status,
			formatDate(b.EndDate),
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Budgets"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Name", "Period", "Spent", "Used", "Status", "Ends"}, rows))
}

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goals",
		Aliases: []string{"goal"},
		Short:   "List and manage savings goals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				renderGoals(cmd.OutOrStdout(), a.state.Goals.All())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <target>",
		Short: "Create a savings goal",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalAdd,
	}
	add.Flags().String("saved", "0", "amount already saved")
	add.Flags().String("deadline", "", "deadline as YYYY-MM-DD")
	add.Flags().String("priority", string(model.PriorityMedium), "low, medium or high")
	add.Flags().String("currency", "", "currency (default: profile currency)")

	contribute := &cobra.Command{
		Use:   "contribute <id> <amount>",
		Short: "Add savings to a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Goals.Collection, "goal", args[0])
				if err != nil {
					return err
				}
				g, err := a.ledger.AddToGoal(ctx, id, amount)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("%s is at %s%%", g.Name, g.Progress().StringFixed(0))
				if g.IsCompleted {
					msg = g.Name + " reached its target"
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Goals.Collection, "goal", args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteGoal(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Goal deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(add, contribute, remove)
	return cmd
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	savedFlag, _ := flags.GetString("saved")
	deadlineFlag, _ := flags.GetString("deadline")
	priority, _ := flags.GetString("priority")
	currency, _ := flags.GetString("currency")

	target, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	saved, err := parseAmount(savedFlag)
	if err != nil {
		return err
	}
	deadline, err := optionalDate(deadlineFlag)
	if err != nil {
		return err
	}

	return withSession(ctx, func(a *app) error {
		g, err := a.ledger.AddGoal(ctx, model.Goal{
			Name:          args[0],
			TargetAmount:  target,
			CurrentAmount: saved,
			Deadline:      deadline,
			Priority:      model.Priority(priority),
			Currency:      currency,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created goal %s (%s)", g.Name, shortID(g.ID))))
		return nil
	})
}

func renderGoals(w io.Writer, goals []model.Goal) {
	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		state := "active"
		if g.IsCompleted {
			state = cli.SuccessStyle.Render("completed")
		}
		rows = append(rows, []string{
			shortID(g.ID),
			g.Name,
			g.CurrentAmount.StringFixed(2) + " / " + g.TargetAmount.StringFixed(2) + " " + g.Currency,
			g.Progress().StringFixed(0) + "%",
			string(g.Priority),
			formatOptionalDate(g.Deadline),
			state,
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Goals"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Name", "Saved", "Progress", "Priority", "Deadline", "State"}, rows))
}

func billsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bills",
		Aliases: []string{"bill"},
		Short:   "List and manage bills",
		RunE:    runBillList,
	}
	cmd.Flags().Bool("upcoming", false, "only unpaid bills due later")
	cmd.Flags().Bool("overdue", false, "only unpaid bills past due")

	add := &cobra.Command{
		Use:   "add <name> <amount> <due>",
		Short: "Add a bill due on YYYY-MM-DD",
		Args:  cobra.ExactArgs(3),
		RunE:  runBillAdd,
	}
	add.Flags().String("frequency", string(model.FrequencyOneTime), "one_time, weekly, monthly, quarterly or yearly")
	add.Flags().String("category", string(model.CategoryBills), "expense category")
	add.Flags().Int("remind", 3, "days before the due date to remind")
	add.Flags().Bool("autopay", false, "bill is paid automatically")

	pay := &cobra.Command{
		Use:   "pay <id>",
		Short: "Mark a bill as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Bills.Collection, "bill", args[0])
				if err != nil {
					return err
				}
				b, err := a.ledger.MarkBillPaid(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(b.Name+" marked as paid"))
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Bills.Collection, "bill", args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteBill(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Bill deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(add, pay, remove)
	return cmd
}

func runBillList(cmd *cobra.Command, _ []string) error {
	upcoming, _ := cmd.Flags().GetBool("upcoming")
	overdue, _ := cmd.Flags().GetBool("overdue")

	return withSession(cmd.Context(), func(a *app) error {
		now := time.Now().UTC()
		var bills []model.Bill
		switch {
		case upcoming:
			bills = a.state.Bills.Upcoming(now)
		case overdue:
			bills = a.state.Bills.Overdue(now)
		default:
			bills = a.state.Bills.All()
		}
		renderBills(cmd.OutOrStdout(), bills, now)
		return nil
	})
}

func runBillAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	frequency, _ := flags.GetString("frequency")
	category, _ := flags.GetString("category")
	remind, _ := flags.GetInt("remind")
	autopay, _ := flags.GetBool("autopay")

	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	due, err := parseDate(args[2])
	if err != nil {
		return err
	}

	return withSession(ctx, func(a *app) error {
		b, err := a.ledger.AddBill(ctx, model.Bill{
			Name:           args[0],
			Amount:         amount,
			DueDate:        due,
			Frequency:      model.Frequency(frequency),
			Category:       model.Category(category),
			ReminderDays:   remind,
			AutoPayEnabled: autopay,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added bill %s due %s", b.Name, formatDate(b.DueDate))))
		return nil
	})
}

func renderBills(w io.Writer, bills []model.Bill, now time.Time) {
	rows := make([][]string, 0, len(bills))
	for _, b := range bills {
		var status string
		switch {
		case b.IsPaid:
			status = cli.SuccessStyle.Render("paid")
		case b.IsOverdue(now):
			status = cli.ErrorStyle.Render("overdue")
		case b.NeedsReminder(now):
			status = cli.WarningStyle.Render("due soon")
		default:
			status = "upcoming"
		}
		rows = append(rows, []string{
			shortID(b.ID),
			b.Name,
			b.Amount.StringFixed(2),
			formatDate(b.DueDate),
			string(b.Frequency),
			status,
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Bills"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Name", "Amount", "Due", "Frequency", "Status"}, rows))
}

// resolveID accepts a full id or a unique id prefix.
func resolveID[T model.Record](c *store.Collection[T], kind, ref string) (string, error) {
	if _, ok := c.Get(ref); ok {
		return ref, nil
	}
	matches := c.Filter(func(rec T) bool { return ref != "" && strings.HasPrefix(rec.RecordID(), ref) })
	switch len(matches) {
	case 1:
		return matches[0].RecordID(), nil
	case 0:
		return "", fmt.Errorf("%w: %s %q", common.ErrNotFound, kind, ref)
	default:
		return "", fmt.Errorf("%w: %q matches %d %ss", common.ErrValidation, ref, len(matches), kind)
	}
}
