package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budget/internal/core"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "budget.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("SETUP_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("budget %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestLedgerCommands(t *testing.T) {
	setupEnv(t)

	if out := mustRun(t, "account", "add", "Emergency", "--starting", "100"); !strings.Contains(out, "account 1") {
		t.Errorf("account add = %q", out)
	}
	mustRun(t, "bill", "add", "Rent", "--typical", "1200", "--save", "25%")

	out := mustRun(t, "paycheck", "2000", "--date", "2025-01-03")
	for _, want := range []string{"bill 1", "$500.00", "week 1 (2025-01-03..2025-01-09)", "$750.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("paycheck output missing %q:\n%s", want, out)
		}
	}

	mustRun(t, "tx", "add", "spending", "20", "--category", "Food", "--date", "2025-01-04", "--week", "1")
	if out := mustRun(t, "week", "summary", "1"); !strings.Contains(out, "$730.00") || !strings.Contains(out, "Food") {
		t.Errorf("week summary = %q", out)
	}
	if out := mustRun(t, "week", "summary", "2", "--period"); !strings.Contains(out, "pay period: spent $20.00, remaining $1480.00") {
		t.Errorf("pay period = %q", out)
	}
	if out := mustRun(t, "balance", "bill", "1"); !strings.Contains(out, "$500.00") {
		t.Errorf("bill balance = %q", out)
	}
	if out := mustRun(t, "balance", "account", "1", "--at", "2025-01-01"); !strings.Contains(out, "$100.00") {
		t.Errorf("account balance at = %q", out)
	}
	if out := mustRun(t, "history", "bill", "1"); strings.Count(out, "\n") != 3 {
		t.Errorf("bill history = %q, want header plus two rows", out)
	}
	if out := mustRun(t, "audit"); !strings.Contains(out, "ledger consistent") {
		t.Errorf("audit = %q", out)
	}
	if out := mustRun(t, "tx", "list", "--type", "spending"); !strings.Contains(out, "Food") {
		t.Errorf("tx list = %q", out)
	}
}

func TestAdminCommandsRequireConfirmation(t *testing.T) {
	setupEnv(t)

	tests := [][]string{
		{"tx", "edit", "1", "5"},
		{"tx", "delete", "1"},
	}
	for _, args := range tests {
		if _, err := run(t, args...); err == nil || !strings.Contains(err.Error(), "--yes") {
			t.Errorf("budget %s: err = %v, want confirmation error", strings.Join(args, " "), err)
		}
	}
	if _, err := run(t, "tx", "delete", "42", "--yes"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("confirmed delete of missing tx: err = %v, want ErrNotFound", err)
	}
}

func TestSetupCommand(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "setup.toml")
	data := `
[[account]]
name = "Emergency"
starting_balance = "250"
auto_save = "50"

[[bill]]
name = "Internet"
typical_amount = "60"
amount_to_save = "0.05"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write setup: %v", err)
	}

	out := mustRun(t, "setup", "-f", path)
	if !strings.Contains(out, `created account 1 "Emergency"`) || !strings.Contains(out, `created bill 1 "Internet"`) {
		t.Errorf("first setup = %q", out)
	}
	out = mustRun(t, "setup", "-f", path)
	if strings.Contains(out, "created") || !strings.Contains(out, "already present: account Emergency, bill Internet") {
		t.Errorf("second setup = %q", out)
	}
	if _, err := run(t, "setup"); err == nil {
		t.Error("setup without a file succeeded")
	}
}

func TestArgumentValidation(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown entity", []string{"balance", "loan", "1"}},
		{"bad id", []string{"history", "bill", "abc"}},
		{"non-numeric amount", []string{"paycheck", "ten"}},
		{"zero amount", []string{"reimburse", "add", "0"}},
		{"bad date", []string{"paycheck", "100", "--date", "03/01/2025"}},
		{"unknown state", []string{"reimburse", "list", "--state", "lost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); !errors.Is(err, core.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestReimburseCommands(t *testing.T) {
	setupEnv(t)

	if out := mustRun(t, "reimburse", "add", "45.50", "--category", "Travel"); !strings.Contains(out, "Pending Submission") {
		t.Errorf("add = %q", out)
	}
	if out := mustRun(t, "reimburse", "state", "1", "submitted"); !strings.Contains(out, "Awaiting Payment") {
		t.Errorf("state = %q", out)
	}
	if out := mustRun(t, "reimburse", "list"); !strings.Contains(out, "outstanding $45.50") {
		t.Errorf("list = %q", out)
	}
}
