package cli

import (
	"errors"
	"fmt"
	"io"

	"budget/internal/core"
	"budget/internal/services"

	"github.com/spf13/cobra"
)

func newBalanceCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance account|bill ID",
		Short: "Show the balance of an account or bill",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID("id", args[1])
			if err != nil {
				return err
			}
			a := app()
			out := cmd.OutOrStdout()
			if at, _ := cmd.Flags().GetString("at"); at != "" {
				d, err := core.ParseDate(at)
				if err != nil {
					return &core.ValidationError{Field: "at", Err: err}
				}
				m, err := a.Ledger.BalanceAt(cmd.Context(), entity, id, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d on %s: %s\n", entity, id, d, m)
				return nil
			}
			m, err := a.Ledger.GetCurrentBalance(cmd.Context(), entity, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %d: %s\n", entity, id, m)
			return nil
		},
	}
	cmd.Flags().String("at", "", "Balance as of date YYYY-MM-DD")
	return cmd
}

func newHistoryCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "history account|bill ID",
		Short: "Show the balance history of an account or bill",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID("id", args[1])
			if err != nil {
				return err
			}
			rows, err := app().Ledger.GetAccountHistory(cmd.Context(), id, entity)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "DATE\tCHANGE\tBALANCE\tTX\tDESCRIPTION")
			for _, h := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Date, h.ChangeAmount, h.RunningTotal, optionalID(h.TransactionID), blank(h.Description))
			}
			return tw.Flush()
		},
	}
}

func newAuditCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [account|bill ID]",
		Short: "Check balance histories against their transactions",
		Long: `Check that every history row belongs to a live transaction, that
running totals chain from the starting balance and that cached balances
match. With --repair the defects are fixed; without it the command exits
non-zero when any are found.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("want no arguments or ENTITY ID, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			repair, _ := cmd.Flags().GetBool("repair")
			a := app()
			var (
				reports []services.AuditReport
				err     error
			)
			if len(args) == 2 {
				entity, perr := parseEntity(args[0])
				if perr != nil {
					return perr
				}
				id, perr := parseID("id", args[1])
				if perr != nil {
					return perr
				}
				var r services.AuditReport
				r, err = a.Ledger.AuditAndRepair(cmd.Context(), entity, id, repair)
				if len(r.Issues) > 0 {
					reports = append(reports, r)
				}
			} else {
				reports, err = a.Ledger.AuditAll(cmd.Context(), repair)
			}

			printAudit(cmd.OutOrStdout(), reports)
			var ce *core.ConsistencyError
			if errors.As(err, &ce) {
				return fmt.Errorf("%d inconsistent ledger(s); re-run with --repair to fix", len(reports))
			}
			return err
		},
	}
	cmd.Flags().Bool("repair", false, "Fix the defects found")
	return cmd
}

func printAudit(w io.Writer, reports []services.AuditReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "ledger consistent")
		return
	}
	for _, r := range reports {
		state := "inconsistent"
		if r.Repaired {
			state = "repaired"
		}
		fmt.Fprintf(w, "%s %d %q: %s\n", r.Entity, r.ID, r.Name, state)
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
}
