package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "spendwise",
		Short: "👛 Personal finance ledger",
		Long: `spendwise keeps wallets, transactions, budgets, goals, bills, investments
and insurance policies in sync with a document store, working offline when
the store cannot be reached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/spendwise/config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(profileCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(walletsCmd())
	root.AddCommand(transactionsCmd())
	root.AddCommand(budgetsCmd())
	root.AddCommand(goalsCmd())
	root.AddCommand(billsCmd())
	root.AddCommand(investmentsCmd())
	root.AddCommand(insuranceCmd())
	root.AddCommand(summaryCmd())
	root.AddCommand(securityCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr, "Unsynced writes stay queued until the next 'spendwise sync'.")
	ctx, stop := interrupts.HandleInterrupts(context.Background())

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		} else {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(cfgFile string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(config.ExpandPath(cfgFile))
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/spendwise", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "spendwise", version)
		},
	}
}
