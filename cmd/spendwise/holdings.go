package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/ledger"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

func investmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "investments",
		Aliases: []string{"investment", "inv"},
		Short:   "List and manage investments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				renderInvestments(cmd.OutOrStdout(), a.state.Investments.All())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Record an investment at its purchase value",
		Args:  cobra.ExactArgs(2),
		RunE:  runInvestmentAdd,
	}
	add.Flags().String("type", string(model.InvestmentOther), "fd, rd, sip, mutual_fund, etf or other")
	add.Flags().String("current", "", "current value (default: purchase value)")
	add.Flags().String("start", "", "start date as YYYY-MM-DD (default: today)")
	add.Flags().String("maturity", "", "maturity date as YYYY-MM-DD")
	add.Flags().String("rate", "", "annual interest rate in percent")
	add.Flags().String("institution", "", "bank or broker")

	value := &cobra.Command{
		Use:   "value <id> <amount>",
		Short: "Set the current value of an investment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Investments.Collection, "investment", args[0])
				if err != nil {
					return err
				}
				inv, err := a.ledger.UpdateInvestment(ctx, id, model.InvestmentPatch{CurrentValue: &current})
				if err != nil {
					return err
				}
				renderInvestments(cmd.OutOrStdout(), []model.Investment{inv})
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an investment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Investments.Collection, "investment", args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteInvestment(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Investment deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(add, value, remove)
	return cmd
}

func runInvestmentAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	kind, _ := flags.GetString("type")
	currentFlag, _ := flags.GetString("current")
	start, _ := flags.GetString("start")
	maturity, _ := flags.GetString("maturity")
	rate, _ := flags.GetString("rate")
	institution, _ := flags.GetString("institution")

	purchase, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	inv := model.Investment{
		Name:          args[0],
		Type:          model.InvestmentType(kind),
		PurchaseValue: purchase,
		CurrentValue:  purchase,
		Institution:   institution,
	}
	if currentFlag != "" {
		if inv.CurrentValue, err = parseAmount(currentFlag); err != nil {
			return err
		}
	}
	if start != "" {
		if inv.StartDate, err = parseDate(start); err != nil {
			return err
		}
	}
	if inv.MaturityDate, err = optionalDate(maturity); err != nil {
		return err
	}
	if rate != "" {
		r, err := parseAmount(rate)
		if err != nil {
			return err
		}
		inv.InterestRate = &r
	}

	return withSession(ctx, func(a *app) error {
		created, err := a.ledger.AddInvestment(ctx, inv)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added investment %s (%s)", created.Name, shortID(created.ID))))
		return nil
	})
}

func renderInvestments(w io.Writer, investments []model.Investment) {
	rows := make([][]string, 0, len(investments))
	for _, inv := range investments {
		rows = append(rows, []string{
			shortID(inv.ID),
			inv.Name,
			string(inv.Type),
			inv.PurchaseValue.StringFixed(2),
			inv.CurrentValue.StringFixed(2),
			cli.FormatAmount(inv.Gain(), inv.Currency),
			formatOptionalDate(inv.MaturityDate),
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Investments"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Name", "Type", "Invested", "Value", "Gain", "Matures"}, rows))
}

func insuranceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "insurance",
		Aliases: []string{"policies"},
		Short:   "List and manage life insurance policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(a *app) error {
				renderPolicies(cmd.OutOrStdout(), a.state.Insurance.All(), time.Now().UTC())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <policy-name>",
		Short: "Add a life insurance policy",
		Long: `Add a life insurance policy. Beneficiaries are given as name:percent and
their percentages must add up to 100, for example:

  spendwise insurance add "Term plan" --premium 1200 --coverage 500000 \
    --start 2024-01-01 --end 2054-01-01 --beneficiary Sam:60 --beneficiary Alex:40`,
		Args: cobra.ExactArgs(1),
		RunE: runPolicyAdd,
	}
	add.Flags().String("provider", "", "insurer")
	add.Flags().String("number", "", "policy number")
	add.Flags().String("premium", "", "premium amount")
	add.Flags().String("coverage", "", "sum assured")
	add.Flags().String("frequency", string(model.FrequencyYearly), "premium frequency: monthly, quarterly or yearly")
	add.Flags().String("start", "", "start date as YYYY-MM-DD")
	add.Flags().String("end", "", "end date as YYYY-MM-DD")
	add.Flags().String("next-premium", "", "next premium date as YYYY-MM-DD")
	add.Flags().StringArray("beneficiary", nil, "beneficiary as name:percent")
	_ = add.MarkFlagRequired("premium")
	_ = add.MarkFlagRequired("coverage")
	_ = add.MarkFlagRequired("start")
	_ = add.MarkFlagRequired("end")

	lapse := &cobra.Command{
		Use:   "lapse <id>",
		Short: "Mark a policy as no longer active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Insurance.Collection, "policy", args[0])
				if err != nil {
					return err
				}
				inactive := false
				p, err := a.ledger.UpdatePolicy(ctx, id, model.InsurancePatch{IsActive: &inactive})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(p.PolicyName+" marked inactive"))
				return nil
			})
		},
	}

	pay := &cobra.Command{
		Use:   "pay <id>",
		Short: "Record a paid premium and schedule the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Insurance.Collection, "policy", args[0])
				if err != nil {
					return err
				}
				p, err := a.ledger.PayPremium(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Premium paid for %s, next due %s",
					p.PolicyName, formatDate(p.NextPremiumDate))))
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withSession(ctx, func(a *app) error {
				id, err := resolveID(a.state.Insurance.Collection, "policy", args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeletePolicy(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Policy deleted"))
				return nil
			})
		},
	}

	cmd.AddCommand(add, pay, lapse, remove)
	return cmd
}

func runPolicyAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	provider, _ := flags.GetString("provider")
	number, _ := flags.GetString("number")
	premiumFlag, _ := flags.GetString("premium")
	coverageFlag, _ := flags.GetString("coverage")
	frequency, _ := flags.GetString("frequency")
	startFlag, _ := flags.GetString("start")
	endFlag, _ := flags.GetString("end")
	nextFlag, _ := flags.GetString("next-premium")
	beneficiaries, _ := flags.GetStringArray("beneficiary")

	p := model.LifeInsurance{
		PolicyName:       args[0],
		Provider:         provider,
		PolicyNumber:     number,
		PremiumFrequency: model.Frequency(frequency),
		IsActive:         true,
		ReminderEnabled:  true,
	}
	var err error
	if p.PremiumAmount, err = parseAmount(premiumFlag); err != nil {
		return err
	}
	if p.CoverageAmount, err = parseAmount(coverageFlag); err != nil {
		return err
	}
	if p.StartDate, err = parseDate(startFlag); err != nil {
		return err
	}
	if p.EndDate, err = parseDate(endFlag); err != nil {
		return err
	}
	if nextFlag != "" {
		if p.NextPremiumDate, err = parseDate(nextFlag); err != nil {
			return err
		}
	}
	if p.Beneficiaries, err = parseBeneficiaries(beneficiaries); err != nil {
		return err
	}

	return withSession(ctx, func(a *app) error {
		created, err := a.ledger.AddPolicy(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added policy %s (%s)", created.PolicyName, shortID(created.ID))))
		return nil
	})
}

// parseBeneficiaries reads name:percent pairs.
func parseBeneficiaries(entries []string) ([]model.Beneficiary, error) {
	out := make([]model.Beneficiary, 0, len(entries))
	for _, entry := range entries {
		name, pct, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: beneficiary %q, want name:percent", common.ErrValidation, entry)
		}
		share, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(pct), "%"))
		if err != nil {
			return nil, fmt.Errorf("%w: beneficiary %q, want name:percent", common.ErrValidation, entry)
		}
		out = append(out, model.Beneficiary{Name: name, Percentage: share})
	}
	return out, nil
}

func renderPolicies(w io.Writer, policies []model.LifeInsurance, now time.Time) {
	rows := make([][]string, 0, len(policies))
	for _, p := range policies {
		next := formatDate(p.NextPremiumDate)
		if p.PremiumDue(now, ledger.PremiumWindow) {
			next = cli.WarningStyle.Render(next)
		}
		state := "active"
		if !p.IsActive {
			state = cli.SubtleStyle.Render("inactive")
		}
		rows = append(rows, []string{
			shortID(p.ID),
			p.PolicyName,
			orDash(p.Provider),
			p.PremiumAmount.StringFixed(2) + " " + string(p.PremiumFrequency),
			cli.FormatAmount(p.CoverageAmount, p.Currency),
			next,
			state,
		})
	}
	fmt.Fprintln(w, cli.FormatTitle("Life insurance"))
	fmt.Fprintln(w, cli.RenderTable([]string{"ID", "Policy", "Provider", "Premium", "Coverage", "Next premium", "State"}, rows))
}
