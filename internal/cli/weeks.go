package cli

import (
	"fmt"
	"io"

	"budget/internal/core"
	"budget/internal/services"

	"github.com/spf13/cobra"
)

func newWeekCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Inspect and close budget weeks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List weeks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			weeks, err := app().Ledger.GetAllWeeks(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "WEEK\tSTART\tEND\tBASE\tCLOSED")
			for _, w := range weeks {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", w.Number, w.StartDate, w.EndDate, w.RunningTotal, w.RolloverApplied)
			}
			return tw.Flush()
		},
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "Show the current week's spendable balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := app().Ledger.WeekSummary(cmd.Context(), 0)
			if err != nil {
				return err
			}
			return printWeekSummary(cmd.OutOrStdout(), sum)
		},
	}

	summary := &cobra.Command{
		Use:   "summary [WEEK]",
		Short: "Show a week, or with --period its whole pay period",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n int64
			if len(args) == 1 {
				var err error
				if n, err = parseID("week_number", args[0]); err != nil {
					return err
				}
			}
			a := app()
			if period, _ := cmd.Flags().GetBool("period"); period {
				p, err := a.Ledger.PayPeriodSummary(cmd.Context(), n)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := printWeekSummary(out, p.Week1); err != nil {
					return err
				}
				if p.HasWeek2 {
					fmt.Fprintln(out)
					if err := printWeekSummary(out, p.Week2); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "\npay period: spent %s, remaining %s\n", p.Spending, p.Current)
				return nil
			}
			sum, err := a.Ledger.WeekSummary(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printWeekSummary(cmd.OutOrStdout(), sum)
		},
	}
	summary.Flags().Bool("period", false, "Include both weeks of the pay period")

	closeCmd := &cobra.Command{
		Use:   "close WEEK",
		Short: "Roll a finished week's leftover or deficit into the next week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseID("week_number", args[0])
			if err != nil {
				return err
			}
			res, err := app().Ledger.CloseWeek(cmd.Context(), n)
			if err != nil {
				return err
			}
			printRollover(cmd.OutOrStdout(), res)
			return nil
		},
	}

	elapsed := &cobra.Command{
		Use:   "close-elapsed",
		Short: "Close every finished week that has a successor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := app().Ledger.CloseElapsedWeeks(cmd.Context())
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no weeks to close")
			}
			for _, r := range results {
				printRollover(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	cmd.AddCommand(list, current, summary, closeCmd, elapsed)
	return cmd
}

func printWeekSummary(w io.Writer, s core.WeekSummary) error {
	fmt.Fprintf(w, "week %d (%s..%s)\n", s.Week.Number, s.Week.StartDate, s.Week.EndDate)
	tw := newTable(w)
	fmt.Fprintf(tw, "  base\t%s\n", s.Base)
	fmt.Fprintf(tw, "  rollover in\t%s\n", s.RolloverIn)
	fmt.Fprintf(tw, "  starting\t%s\n", s.Starting)
	fmt.Fprintf(tw, "  spent\t%s\n", s.Spending)
	fmt.Fprintf(tw, "  remaining\t%s\n", s.Current)
	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "    %s\t%s\n", c.Name, c.Amount)
	}
	return tw.Flush()
}

func printRollover(w io.Writer, r services.RolloverResult) {
	if !r.Applied {
		fmt.Fprintf(w, "week %d already closed\n", r.WeekNumber)
		return
	}
	fmt.Fprintf(w, "week %d closed: %s rolled into week %d\n", r.WeekNumber, r.Amount, r.TargetWeek)
}
