package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/HarshGadhecha/SpendWise/internal/cli"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued writes and reload from the document store",
		Long: `Replay writes that were queued while the document store was unreachable,
then reload every collection. Unlike other commands, sync fails when the
document store cannot be reached.`,
		RunE: runSync,
	}
	cmd.Flags().Bool("status", false, "only show the queue and last sync time")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	statusOnly, _ := cmd.Flags().GetBool("status")

	return withApp(ctx, func(a *app) error {
		out := cmd.OutOrStdout()
		if statusOnly {
			return renderSyncStatus(ctx, out, a.sync)
		}
		if err := a.signInCached(ctx); err != nil {
			return err
		}

		n, err := a.sync.Flush(ctx)
		if err != nil {
			return fmt.Errorf("failed to push queued writes: %w", err)
		}
		if n > 0 {
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Pushed %d queued writes", n)))
		}

		progress := cli.NewProgress(cmd.ErrOrStderr(), syncer.Collections, "Loading")
		if err := a.ledger.Load(ctx, progress.Step); err != nil {
			return fmt.Errorf("failed to load: %w", err)
		}
		return renderSyncStatus(ctx, out, a.sync)
	})
}

func renderSyncStatus(ctx context.Context, w io.Writer, svc *syncer.Service) error {
	pending, err := svc.Pending(ctx)
	if err != nil {
		return err
	}
	last, ok, err := svc.LastSync(ctx)
	if err != nil {
		return err
	}

	when := "never"
	if ok {
		when = last.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintln(w, cli.FormatInfo("Last sync: "+when))
	if pending > 0 {
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("%d writes waiting to be pushed", pending)))
	} else {
		fmt.Fprintln(w, cli.FormatSuccess("Nothing waiting to be pushed"))
	}
	return nil
}
