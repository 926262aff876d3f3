package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"loyalty-topup/internal/core/ports"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type serviceFactory func(ctx context.Context, configPath string) (ports.ReconciliationService, func(), error)

func newRootCmd(open serviceFactory) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "reconcile",
		Short:         "Inspect and repair settled top-ups whose wallet credit is missing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml)")

	// withService opens the service for one command run.
	withService := func(run func(ctx context.Context, svc ports.ReconciliationService, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, closeFn, err := open(ctx, configPath)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			return run(ctx, svc, cmd, args)
		}
	}

	rootCmd.AddCommand(listCmd(withService))
	rootCmd.AddCommand(replayCmd(withService))
	rootCmd.AddCommand(resolveCmd(withService))
	return rootCmd
}

type runner func(run func(ctx context.Context, svc ports.ReconciliationService, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func listCmd(with runner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open inconsistencies, oldest first",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, svc ports.ReconciliationService, cmd *cobra.Command, _ []string) error {
			recs, err := svc.ListOpen(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No open inconsistencies.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER TX\tOWNER\tPOINTS\tCREATED\tREASON")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.ProviderTransactionID, r.WalletOwnerID, r.Points,
					r.CreatedAt.UTC().Format(time.RFC3339), r.Reason)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum rows")
	return cmd
}

func replayCmd(with runner) *cobra.Command {
	var all bool
	var limit int
	cmd := &cobra.Command{
		Use:   "replay [id]",
		Short: "Apply the missing wallet credit and resolve the inconsistency",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass an id or --all, not both")
			}
			if !all && len(args) != 1 {
				return errors.New("an inconsistency id is required (or --all)")
			}
			return nil
		},
		RunE: with(func(ctx context.Context, svc ports.ReconciliationService, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !all {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid id %q: %w", args[0], err)
				}
				return replayOne(ctx, svc, out, id)
			}

			recs, err := svc.ListOpen(ctx, limit)
			if err != nil {
				return err
			}
			var failed int
			for _, r := range recs {
				if err := replayOne(ctx, svc, out, r.ID); err != nil {
					fmt.Fprintf(out, "%s  FAILED  %v\n", r.ID, err)
					failed++
				}
			}
			fmt.Fprintf(out, "Replayed %d of %d.\n", len(recs)-failed, len(recs))
			if failed > 0 {
				return fmt.Errorf("%d replays failed", failed)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Replay every open inconsistency")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum rows with --all")
	return cmd
}

func replayOne(ctx context.Context, svc ports.ReconciliationService, out io.Writer, id uuid.UUID) error {
	res, err := svc.Replay(ctx, id)
	if err != nil {
		return err
	}
	action := "credited"
	if !res.Credited {
		action = "already credited, resolved"
	}
	fmt.Fprintf(out, "%s  %s  owner=%s balance=%d\n", id, action, res.Inconsistency.WalletOwnerID, res.NewBalance)
	return nil
}

func resolveCmd(with runner) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Close an inconsistency without touching the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(ctx context.Context, svc ports.ReconciliationService, cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			if err := svc.Resolve(ctx, id, note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  resolved\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVar(&note, "note", "", "Why the row is being closed (required)")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}
