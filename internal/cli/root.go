package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"budget/internal/core"
	"budget/internal/log"

	"github.com/spf13/cobra"
)

// Execute runs the budget command tree against os.Args.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the budget command tree. Subcommands run against an
// App opened before and closed after the command.
func NewRootCmd() *cobra.Command {
	var app *App

	root := &cobra.Command{
		Use:   "budget",
		Short: "Bi-weekly paycheck budget ledger",
		Long: `Allocate paychecks into bills, savings accounts and two weekly
budgets, roll weekly leftovers forward and keep an auditable balance
history for every account and bill.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig()
			if err != nil {
				return err
			}
			logger, err := SetupLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			app, err = OpenApp(cmd.Context(), cfg, logger.WithComponent(log.ComponentCLI), true)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
	}
	root.SetContext(context.Background())

	get := func() *App { return app }
	root.AddCommand(
		newSetupCmd(get),
		newAccountCmd(get),
		newBillCmd(get),
		newPaycheckCmd(get),
		newTxCmd(get),
		newTransferCmd(get),
		newWeekCmd(get),
		newBalanceCmd(get),
		newHistoryCmd(get),
		newAuditCmd(get),
		newReimburseCmd(get),
		newServeCmd(get),
	)
	return root
}

// appFunc defers reading the App until the command runs.
type appFunc func() *App

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func parseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(field, "must be a positive integer, got %q", s)
	}
	return id, nil
}

func parseAmount(field, s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Err: err}
	}
	if m.Cents <= 0 {
		return core.Money{}, core.Invalid(field, "must be positive, got %q", s)
	}
	return m, nil
}

// parseOptionalDate returns today for an empty flag.
func parseOptionalDate(s string, today core.Date) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return today, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Err: err}
	}
	return d, nil
}

func parseEntity(s string) (core.EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "account", "accounts", "savings":
		return core.SavingsEntity, nil
	case "bill", "bills":
		return core.BillEntity, nil
	}
	return "", core.Invalid("entity_type", "want account or bill, got %q", s)
}

// requireConfirm refuses an admin mutation unless --yes was passed.
func requireConfirm(cmd *cobra.Command, what string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return errors.New(what + " rewrites ledger history; re-run with --yes to confirm")
	}
	return nil
}

func blank(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optionalID(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}
