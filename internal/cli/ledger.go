package cli

import (
	"fmt"
	"strings"
	"time"

	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/services"

	"github.com/spf13/cobra"
)

func today() core.Date { return core.DateOf(time.Now()) }

// ─── setup ──────────────────────────────────────────────────────────────────

func newSetupCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the accounts and bills declared in a TOML setup file",
		Long: `Create every account and bill declared in the setup file that does
not exist yet. Existing entries are matched by name and left untouched,
so the command can be re-run after editing the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = a.Config.SetupFile
			}
			if path == "" {
				return fmt.Errorf("setup file required: budget setup -f <file> or SETUP_FILE")
			}
			file, err := config.LoadSetupFile(path)
			if err != nil {
				return err
			}
			accounts, bills, err := file.Ledger()
			if err != nil {
				return err
			}
			res, err := a.Ledger.ApplySetup(cmd.Context(), accounts, bills)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, acct := range res.CreatedAccounts {
				fmt.Fprintf(out, "created account %d %q starting %s\n", acct.ID, acct.Name, acct.StartingBalance)
			}
			for _, b := range res.CreatedBills {
				fmt.Fprintf(out, "created bill %d %q saving %s\n", b.ID, b.Name, b.AmountToSave)
			}
			if len(res.Existing) > 0 {
				fmt.Fprintf(out, "already present: %s\n", strings.Join(res.Existing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Setup file (default $SETUP_FILE)")
	return cmd
}

// ─── account ────────────────────────────────────────────────────────────────

func newAccountCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage savings accounts",
	}

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a savings account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct := core.Account{Name: args[0]}
			var err error
			if acct.StartingBalance, err = moneyFlag(cmd, "starting"); err != nil {
				return err
			}
			if acct.GoalAmount, err = moneyFlag(cmd, "goal"); err != nil {
				return err
			}
			if acct.AutoSave, err = saveRuleFlag(cmd, "auto-save"); err != nil {
				return err
			}
			acct.IsDefaultSave, _ = cmd.Flags().GetBool("default")

			created, err := app().Ledger.CreateAccount(cmd.Context(), acct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d %q created with %s\n", created.ID, created.Name, created.RunningTotal)
			return nil
		},
	}
	add.Flags().String("starting", "", "Starting balance")
	add.Flags().String("goal", "", "Goal amount")
	add.Flags().String("auto-save", "", "Per-paycheck rule: fraction (0.1), percent (10%) or fixed amount (50)")
	add.Flags().Bool("default", false, "Mark as the default savings account")

	list := &cobra.Command{
		Use:   "list",
		Short: "List savings accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := app().Ledger.GetAllAccounts(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tGOAL\tAUTO SAVE")
			for _, a := range accounts {
				goal := "-"
				if !a.GoalAmount.IsZero() {
					goal = a.GoalAmount.String()
				}
				auto := "-"
				if !a.AutoSave.IsZero() {
					auto = a.AutoSave.String()
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.RunningTotal, goal, auto)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// ─── bill ───────────────────────────────────────────────────────────────────

func newBillCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Manage bills",
	}

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := core.Bill{Name: args[0]}
			b.BillType, _ = cmd.Flags().GetString("type")
			b.Notes, _ = cmd.Flags().GetString("notes")
			b.IsVariable, _ = cmd.Flags().GetBool("variable")
			freq, _ := cmd.Flags().GetString("frequency")
			b.Frequency = core.PaymentFrequency(strings.ToLower(strings.TrimSpace(freq)))

			var err error
			if b.TypicalAmount, err = moneyFlag(cmd, "typical"); err != nil {
				return err
			}
			if b.TypicalAmount.IsZero() {
				b.IsVariable = true
			}
			if b.StartingBalance, err = moneyFlag(cmd, "starting"); err != nil {
				return err
			}
			if b.AmountToSave, err = saveRuleFlag(cmd, "save"); err != nil {
				return err
			}

			created, err := app().Ledger.CreateBill(cmd.Context(), b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bill %d %q created with %s\n", created.ID, created.Name, created.RunningTotal)
			return nil
		},
	}
	add.Flags().String("type", "", "Bill type, e.g. utility or insurance")
	add.Flags().String("frequency", string(core.FrequencyMonthly), "weekly, monthly, quarterly, semester, semi-annual, yearly or other")
	add.Flags().String("typical", "", "Typical amount; empty marks the bill variable")
	add.Flags().Bool("variable", false, "Amount varies between payments")
	add.Flags().String("save", "", "Per-paycheck rule: fraction (0.1), percent (10%) or fixed amount (50)")
	add.Flags().String("starting", "", "Starting balance")
	add.Flags().String("notes", "", "Free-form notes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bills, err := app().Ledger.GetAllBills(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tFREQUENCY\tBALANCE\tSAVE\tLAST PAID")
			for _, b := range bills {
				save := "-"
				if !b.AmountToSave.IsZero() {
					save = b.AmountToSave.String()
				}
				last := "-"
				if !b.LastPaymentDate.IsZero() {
					last = fmt.Sprintf("%s %s", b.LastPaymentDate, b.LastPaymentAmount)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Frequency, b.RunningTotal, save, last)
			}
			return tw.Flush()
		},
	}

	pay := &cobra.Command{
		Use:   "pay BILL_ID AMOUNT",
		Short: "Record a payment out of a bill's saved balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bill_id", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			date, week, err := dateWeekFlags(cmd)
			if err != nil {
				return err
			}
			t, err := app().Ledger.PayBill(cmd.Context(), id, amount, date, week)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paid %s from bill %d (transaction %d, week %d)\n", t.Amount, id, t.ID, t.WeekNumber)
			return nil
		},
	}
	addDateWeekFlags(pay)

	cmd.AddCommand(add, list, pay)
	return cmd
}

// ─── paycheck ───────────────────────────────────────────────────────────────

func newPaycheckCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paycheck AMOUNT",
		Short: "Allocate a paycheck into bills, accounts and the next two weeks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[0])
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("date")
			date, err := parseOptionalDate(raw, today())
			if err != nil {
				return err
			}
			res, err := app().Ledger.ProcessPaycheck(cmd.Context(), amount, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "paycheck %s on %s\n", res.Income.Amount, res.Income.Date)
			tw := newTable(out)
			for _, t := range res.BillReservations {
				fmt.Fprintf(tw, "  bill %d\t%s\n", t.BillID, t.Amount)
			}
			for _, t := range res.AccountReservations {
				fmt.Fprintf(tw, "  account %d\t%s\n", t.AccountID, t.Amount)
			}
			fmt.Fprintf(tw, "  week %d (%s..%s)\t%s\n", res.Week1.Number, res.Week1.StartDate, res.Week1.EndDate, res.Week1.RunningTotal)
			fmt.Fprintf(tw, "  week %d (%s..%s)\t%s\n", res.Week2.Number, res.Week2.StartDate, res.Week2.EndDate, res.Week2.RunningTotal)
			return tw.Flush()
		},
	}
	cmd.Flags().String("date", "", "Pay date YYYY-MM-DD (default today)")
	return cmd
}

// ─── tx ─────────────────────────────────────────────────────────────────────

func newTxCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Record, list and correct transactions",
	}

	add := &cobra.Command{
		Use:   "add TYPE AMOUNT",
		Short: "Record a spending, saving, withdrawal, income or bill_pay transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			date, week, err := dateWeekFlags(cmd)
			if err != nil {
				return err
			}
			in := core.NewTransaction{
				Type:       core.TransactionType(strings.ToLower(args[0])),
				Amount:     amount,
				Date:       date,
				WeekNumber: week,
			}
			in.Description, _ = cmd.Flags().GetString("description")
			in.Category, _ = cmd.Flags().GetString("category")
			in.AccountID, _ = cmd.Flags().GetInt64("account")
			in.BillID, _ = cmd.Flags().GetInt64("bill")
			in.ExcludeFromAnalytics, _ = cmd.Flags().GetBool("exclude-analytics")

			a := app()
			if in.WeekNumber == 0 {
				w, err := a.Ledger.GetCurrentWeek(cmd.Context())
				if err != nil {
					return fmt.Errorf("resolve current week: %w", err)
				}
				in.WeekNumber = w.Number
			}
			t, err := a.Ledger.AddTransaction(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d recorded: %s %s in week %d\n", t.ID, t.Type, t.Amount, t.WeekNumber)
			return nil
		},
	}
	addDateWeekFlags(add)
	add.Flags().String("description", "", "Description")
	add.Flags().String("category", "", "Category (spending only)")
	add.Flags().Int64("account", 0, "Savings account id")
	add.Flags().Int64("bill", 0, "Bill id")
	add.Flags().Bool("exclude-analytics", false, "Leave out of analytics")

	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f core.TransactionFilter
			f.WeekNumber, _ = cmd.Flags().GetInt64("week")
			f.AccountID, _ = cmd.Flags().GetInt64("account")
			f.BillID, _ = cmd.Flags().GetInt64("bill")
			f.Limit, _ = cmd.Flags().GetInt("limit")
			typ, _ := cmd.Flags().GetString("type")
			f.Type = core.TransactionType(strings.ToLower(typ))

			txs, err := app().Ledger.GetAllTransactions(cmd.Context(), f)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tDATE\tWEEK\tTYPE\tAMOUNT\tACCOUNT\tBILL\tCATEGORY\tDESCRIPTION")
			for _, t := range txs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Date, t.WeekNumber, t.Type, t.Amount,
					optionalID(t.AccountID), optionalID(t.BillID), blank(t.Category), blank(t.Description))
			}
			return tw.Flush()
		},
	}
	list.Flags().Int64("week", 0, "Week number")
	list.Flags().Int64("account", 0, "Savings account id")
	list.Flags().Int64("bill", 0, "Bill id")
	list.Flags().String("type", "", "Transaction type")
	list.Flags().Int("limit", 0, "Maximum rows")

	edit := &cobra.Command{
		Use:   "edit ID AMOUNT",
		Short: "Change a transaction's amount and rebalance the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			if err := requireConfirm(cmd, "editing a transaction"); err != nil {
				return err
			}
			t, err := app().Ledger.EditTransactionAmount(cmd.Context(), id, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d now %s\n", t.ID, t.Amount)
			return nil
		},
	}
	edit.Flags().BoolP("yes", "y", false, "Confirm the edit")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction and reverse its balance effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			if err := requireConfirm(cmd, "deleting a transaction"); err != nil {
				return err
			}
			if err := app().Ledger.DeleteTransaction(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d deleted\n", id)
			return nil
		},
	}
	del.Flags().BoolP("yes", "y", false, "Confirm the delete")

	cmd.AddCommand(add, list, edit, del)
	return cmd
}

// ─── transfer ───────────────────────────────────────────────────────────────

func newTransferCmd(app appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer FROM_ACCOUNT TO_ACCOUNT AMOUNT",
		Short: "Move money between two savings accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("from_account_id", args[0])
			if err != nil {
				return err
			}
			to, err := parseID("to_account_id", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			date, week, err := dateWeekFlags(cmd)
			if err != nil {
				return err
			}
			desc, _ := cmd.Flags().GetString("description")
			out, in, err := app().Ledger.Transfer(cmd.Context(), services.TransferRequest{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        amount,
				Date:          date,
				WeekNumber:    week,
				Description:   desc,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transferred %s from account %d to %d (transactions %d, %d)\n",
				amount, from, to, out.ID, in.ID)
			return nil
		},
	}
	addDateWeekFlags(cmd)
	cmd.Flags().String("description", "", "Description")
	return cmd
}

// ─── flag helpers ───────────────────────────────────────────────────────────

func addDateWeekFlags(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "Date YYYY-MM-DD (default today)")
	cmd.Flags().Int64("week", 0, "Week number (default current week)")
}

func dateWeekFlags(cmd *cobra.Command) (core.Date, int64, error) {
	raw, _ := cmd.Flags().GetString("date")
	date, err := parseOptionalDate(raw, today())
	if err != nil {
		return core.Date{}, 0, err
	}
	week, _ := cmd.Flags().GetInt64("week")
	if week < 0 {
		return core.Date{}, 0, core.Invalid("week_number", "must not be negative")
	}
	return date, week, nil
}

func moneyFlag(cmd *cobra.Command, name string) (core.Money, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: name, Err: err}
	}
	return m, nil
}

func saveRuleFlag(cmd *cobra.Command, name string) (core.SaveRule, error) {
	raw, _ := cmd.Flags().GetString(name)
	r, err := core.ParseSaveRule(raw)
	if err != nil {
		return core.SaveRule{}, &core.ValidationError{Field: name, Err: err}
	}
	return r, nil
}
