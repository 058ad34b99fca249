package cli

import (
	"fmt"
	"strings"

	"budget/internal/core"

	"github.com/spf13/cobra"
)

func newReimburseCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reimburse",
		Short: "Track money owed back to you",
	}

	add := &cobra.Command{
		Use:   "add AMOUNT",
		Short: "Track a new reimbursement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[0])
			if err != nil {
				return err
			}
			r := core.Reimbursement{Amount: amount}
			raw, _ := cmd.Flags().GetString("date")
			if raw != "" {
				if r.Date, err = core.ParseDate(raw); err != nil {
					return &core.ValidationError{Field: "date", Err: err}
				}
			}
			state, _ := cmd.Flags().GetString("state")
			r.State = core.ReimbursementState(strings.ToLower(state))
			r.Category, _ = cmd.Flags().GetString("category")
			r.Location, _ = cmd.Flags().GetString("location")
			r.Notes, _ = cmd.Flags().GetString("notes")

			out, err := app().Ledger.AddReimbursement(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reimbursement %d: %s %s\n", out.ID, out.Amount, out.State.Label())
			return nil
		},
	}
	add.Flags().String("date", "", "Date spent YYYY-MM-DD (default today)")
	add.Flags().String("state", "", "Initial state (default pending)")
	add.Flags().String("category", "", "Category")
	add.Flags().String("location", "", "Where the money was spent")
	add.Flags().String("notes", "", "Notes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List reimbursements and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			state, _ := cmd.Flags().GetString("state")
			rs, err := a.Ledger.ListReimbursements(cmd.Context(), core.ReimbursementState(strings.ToLower(state)))
			if err != nil {
				return err
			}
			totals, err := a.Ledger.ReimbursementTotals(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tSTATE\tCATEGORY\tNOTES")
			for _, r := range rs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.Amount, r.State.Label(), blank(r.Category), blank(r.Notes))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\npending %s, outstanding %s, reimbursed %s\n", totals.Pending, totals.Outstanding, totals.Reimbursed)
			return nil
		},
	}
	list.Flags().String("state", "", "Only this state")

	state := &cobra.Command{
		Use:   "state ID STATE",
		Short: "Move a reimbursement to pending, submitted, reimbursed, partial or denied",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			r, err := app().Ledger.SetReimbursementState(cmd.Context(), id, core.ReimbursementState(strings.ToLower(args[1])))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reimbursement %d: %s\n", r.ID, r.State.Label())
			return nil
		},
	}

	cmd.AddCommand(add, list, state)
	return cmd
}
