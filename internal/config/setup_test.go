package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budget/internal/core"
)

const sampleSetup = `
[[account]]
name = "Emergency"
starting_balance = "500.00"
goal = "10000"
auto_save = "5%"
default_save = true

[[account]]
name = "Vacation"
auto_save = "25"

[[bill]]
name = "Rent"
type = "Housing"
typical_amount = "1200"
amount_to_save = "600"

[[bill]]
name = "Electric"
frequency = "Quarterly"
amount_to_save = "0.1"
notes = "varies with the season"
`

func TestLoadSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup.toml")
	if err := os.WriteFile(path, []byte(sampleSetup), 0644); err != nil {
		t.Fatalf("write setup: %v", err)
	}

	f, err := LoadSetupFile(path)
	if err != nil {
		t.Fatalf("LoadSetupFile() = %v", err)
	}
	accounts, bills, err := f.Ledger()
	if err != nil {
		t.Fatalf("Ledger() = %v", err)
	}
	if len(accounts) != 2 || len(bills) != 2 {
		t.Fatalf("got %d accounts, %d bills", len(accounts), len(bills))
	}

	emergency := accounts[0]
	if emergency.StartingBalance != core.Dollars(500) || emergency.GoalAmount != core.Dollars(10000) || !emergency.IsDefaultSave {
		t.Errorf("emergency = %+v", emergency)
	}
	if !emergency.AutoSave.IsFraction() || emergency.AutoSave.Reserve(core.Dollars(1000)) != core.Dollars(50) {
		t.Errorf("emergency auto save = %s", emergency.AutoSave)
	}
	if accounts[1].AutoSave.IsFraction() {
		t.Errorf("vacation auto save %s should be fixed", accounts[1].AutoSave)
	}

	rent, electric := bills[0], bills[1]
	if rent.Frequency != core.FrequencyMonthly || rent.TypicalAmount != core.Dollars(1200) || rent.IsVariable {
		t.Errorf("rent = %+v", rent)
	}
	if electric.Frequency != core.FrequencyQuarterly || !electric.IsVariable || electric.Notes != "varies with the season" {
		t.Errorf("electric = %+v", electric)
	}
}

func TestParseSetup_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"syntax", "[[account]\nname = 1", "parse setup"},
		{"unknown key", "[[account]]\nname = \"A\"\nbalance = \"1\"", "unknown keys account.balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSetup(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseSetup() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetupFile_LedgerReportsEveryProblem(t *testing.T) {
	f, err := ParseSetup(`
[[account]]
name = ""

[[account]]
name = "Broken"
starting_balance = "-5"

[[bill]]
name = "Gym"
frequency = "fortnightly"
amount_to_save = "lots"
`)
	if err != nil {
		t.Fatalf("ParseSetup() = %v", err)
	}
	_, _, err = f.Ledger()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{`account ""`, `account "Broken": starting_balance`, `bill "Gym": amount_to_save`, `payment_frequency`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}
