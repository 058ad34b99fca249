package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"budget/internal/core"

	"github.com/BurntSushi/toml"
)

// SetupFile declares the accounts and bills a ledger starts with.
//
//	[[account]]
//	name = "Emergency"
//	starting_balance = "500.00"
//	auto_save = "5%"
//	default_save = true
//
//	[[bill]]
//	name = "Rent"
//	frequency = "monthly"
//	typical_amount = "1200"
//	amount_to_save = "600"
type SetupFile struct {
	Accounts []AccountSpec `toml:"account"`
	Bills    []BillSpec    `toml:"bill"`
}

type AccountSpec struct {
	Name            string `toml:"name"`
	StartingBalance string `toml:"starting_balance"`
	Goal            string `toml:"goal"`
	AutoSave        string `toml:"auto_save"`
	DefaultSave     bool   `toml:"default_save"`
}

type BillSpec struct {
	Name            string `toml:"name"`
	Type            string `toml:"type"`
	Frequency       string `toml:"frequency"`
	TypicalAmount   string `toml:"typical_amount"`
	Variable        bool   `toml:"variable"`
	AmountToSave    string `toml:"amount_to_save"`
	StartingBalance string `toml:"starting_balance"`
	Notes           string `toml:"notes"`
}

// LoadSetupFile parses a setup file.
func LoadSetupFile(path string) (*SetupFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read setup file: %w", err)
	}
	f, err := ParseSetup(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseSetup decodes setup declarations. Unknown keys are rejected so a
// typo does not silently drop a setting.
func ParseSetup(data string) (*SetupFile, error) {
	var f SetupFile
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("parse setup: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parse setup: unknown keys %s", strings.Join(keys, ", "))
	}
	return &f, nil
}

// Ledger converts the declarations into domain values. Every entry is
// checked so one run reports all problems.
func (f *SetupFile) Ledger() ([]core.Account, []core.Bill, error) {
	var (
		accounts []core.Account
		bills    []core.Bill
		problems []string
	)
	fail := func(kind, name, field string, err error) {
		problems = append(problems, fmt.Sprintf("%s %q: %s: %v", kind, name, field, err))
	}

	for _, s := range f.Accounts {
		a := core.Account{Name: strings.TrimSpace(s.Name), IsDefaultSave: s.DefaultSave}
		var err error
		if a.StartingBalance, err = optionalMoney(s.StartingBalance); err != nil {
			fail("account", s.Name, "starting_balance", err)
		}
		if a.GoalAmount, err = optionalMoney(s.Goal); err != nil {
			fail("account", s.Name, "goal", err)
		}
		if a.AutoSave, err = core.ParseSaveRule(s.AutoSave); err != nil {
			fail("account", s.Name, "auto_save", err)
		}
		if err := a.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("account %q: %v", s.Name, err))
		}
		accounts = append(accounts, a)
	}

	for _, s := range f.Bills {
		b := core.Bill{
			Name:       strings.TrimSpace(s.Name),
			BillType:   strings.TrimSpace(s.Type),
			Frequency:  core.PaymentFrequency(strings.ToLower(strings.TrimSpace(s.Frequency))),
			IsVariable: s.Variable,
			Notes:      strings.TrimSpace(s.Notes),
		}
		if b.Frequency == "" {
			b.Frequency = core.FrequencyMonthly
		}
		var err error
		if b.TypicalAmount, err = optionalMoney(s.TypicalAmount); err != nil {
			fail("bill", s.Name, "typical_amount", err)
		}
		if b.StartingBalance, err = optionalMoney(s.StartingBalance); err != nil {
			fail("bill", s.Name, "starting_balance", err)
		}
		if b.AmountToSave, err = core.ParseSaveRule(s.AmountToSave); err != nil {
			fail("bill", s.Name, "amount_to_save", err)
		}
		if b.TypicalAmount.IsZero() {
			b.IsVariable = true
		}
		if err := b.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("bill %q: %v", s.Name, err))
		}
		bills = append(bills, b)
	}

	if len(problems) > 0 {
		return nil, nil, fmt.Errorf("invalid setup:\n- %s", strings.Join(problems, "\n- "))
	}
	return accounts, bills, nil
}

func optionalMoney(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Money{}, nil
	}
	return core.ParseMoney(s)
}
