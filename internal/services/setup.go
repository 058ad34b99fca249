package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"budget/internal/core"
	"budget/internal/storage"
)

// SetupResult lists what ApplySetup created and what already existed.
type SetupResult struct {
	CreatedAccounts []core.Account
	CreatedBills    []core.Bill
	Existing        []string
}

// CreateAccount adds a savings account with its seed history row.
func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	var out core.Account
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		var err error
		out, err = s.createAccount(ctx, tx, a)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "account_id", out.ID, "name", out.Name)
	return out, nil
}

func (s *LedgerService) createAccount(ctx context.Context, tx *storage.SQLiteRepository, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if _, err := tx.GetAccountByName(ctx, a.Name); err == nil {
		return core.Account{}, core.Invalid("name", "account %q already exists", a.Name)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Account{}, err
	}

	created, err := tx.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}
	b := core.Bucket{Entity: core.SavingsEntity, ID: created.ID, Name: created.Name, StartingBalance: created.StartingBalance}
	if err := createSeed(ctx, tx, b, s.today()); err != nil {
		return core.Account{}, err
	}
	return created, nil
}

// CreateBill adds a bill with its seed history row.
func (s *LedgerService) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	var out core.Bill
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		var err error
		out, err = s.createBill(ctx, tx, b)
		return err
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}
	slog.InfoContext(ctx, "Bill created", "bill_id", out.ID, "name", out.Name)
	return out, nil
}

func (s *LedgerService) createBill(ctx context.Context, tx *storage.SQLiteRepository, b core.Bill) (core.Bill, error) {
	b.Name = strings.TrimSpace(b.Name)
	if b.Frequency == "" {
		b.Frequency = core.FrequencyMonthly
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if _, err := tx.GetBillByName(ctx, b.Name); err == nil {
		return core.Bill{}, core.Invalid("name", "bill %q already exists", b.Name)
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Bill{}, err
	}

	created, err := tx.CreateBill(ctx, b)
	if err != nil {
		return core.Bill{}, err
	}
	bucket := core.Bucket{Entity: core.BillEntity, ID: created.ID, Name: created.Name, StartingBalance: created.StartingBalance}
	if err := createSeed(ctx, tx, bucket, s.today()); err != nil {
		return core.Bill{}, err
	}
	return created, nil
}

// ApplySetup creates every declared account and bill that does not exist
// yet, matched by name. Existing ones are left untouched.
func (s *LedgerService) ApplySetup(ctx context.Context, accounts []core.Account, bills []core.Bill) (SetupResult, error) {
	var res SetupResult
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		for _, a := range accounts {
			_, err := tx.GetAccountByName(ctx, strings.TrimSpace(a.Name))
			if err == nil {
				res.Existing = append(res.Existing, "account "+a.Name)
				continue
			}
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			created, err := s.createAccount(ctx, tx, a)
			if err != nil {
				return fmt.Errorf("account %q: %w", a.Name, err)
			}
			res.CreatedAccounts = append(res.CreatedAccounts, created)
		}
		for _, b := range bills {
			_, err := tx.GetBillByName(ctx, strings.TrimSpace(b.Name))
			if err == nil {
				res.Existing = append(res.Existing, "bill "+b.Name)
				continue
			}
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			created, err := s.createBill(ctx, tx, b)
			if err != nil {
				return fmt.Errorf("bill %q: %w", b.Name, err)
			}
			res.CreatedBills = append(res.CreatedBills, created)
		}
		return nil
	})
	if err != nil {
		return SetupResult{}, fmt.Errorf("apply setup: %w", err)
	}

	slog.InfoContext(ctx, "Setup applied",
		"accounts_created", len(res.CreatedAccounts),
		"bills_created", len(res.CreatedBills),
		"existing", len(res.Existing))
	return res, nil
}
