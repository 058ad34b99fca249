package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/metrics"
	"budget/internal/storage"
)

const seedDescription = "Starting balance"

// AuditReport lists the defects found in one account or bill ledger.
type AuditReport struct {
	Entity   core.EntityType
	ID       int64
	Name     string
	Issues   []string
	Repaired bool
}

// GetCurrentBalance returns the cached running total.
func (s *LedgerService) GetCurrentBalance(ctx context.Context, entity core.EntityType, id int64) (core.Money, error) {
	b, err := s.storage.GetBucket(ctx, entity, id)
	if err != nil {
		return core.Money{}, err
	}
	return b.RunningTotal, nil
}

// DerivedBalance recomputes the balance from the starting balance and the
// resolved effect of every transaction referencing the bucket.
func (s *LedgerService) DerivedBalance(ctx context.Context, entity core.EntityType, id int64) (core.Money, error) {
	return derivedBalance(ctx, s.storage, entity, id)
}

func derivedBalance(ctx context.Context, store *storage.SQLiteRepository, entity core.EntityType, id int64) (core.Money, error) {
	b, err := store.GetBucket(ctx, entity, id)
	if err != nil {
		return core.Money{}, err
	}
	sum, err := store.SumBalanceDelta(ctx, entity, id)
	if err != nil {
		return core.Money{}, err
	}
	return b.StartingBalance.Add(sum), nil
}

// BalanceAt returns the balance as of the end of date.
func (s *LedgerService) BalanceAt(ctx context.Context, entity core.EntityType, id int64, date core.Date) (core.Money, error) {
	b, err := s.storage.GetBucket(ctx, entity, id)
	if err != nil {
		return core.Money{}, err
	}
	h, err := s.storage.HistoryAtOrBefore(ctx, entity, id, date)
	if errors.Is(err, core.ErrNotFound) {
		return b.StartingBalance, nil
	}
	if err != nil {
		return core.Money{}, err
	}
	return h.RunningTotal, nil
}

// History returns the bucket's ledger in replay order. A bucket without
// transactions still has its seed row.
func (s *LedgerService) History(ctx context.Context, entity core.EntityType, id int64) ([]core.HistoryEntry, error) {
	if _, err := s.storage.GetBucket(ctx, entity, id); err != nil {
		return nil, err
	}
	return s.storage.ListHistory(ctx, entity, id)
}

// GetAccountHistory is History with the argument order of the read contract.
func (s *LedgerService) GetAccountHistory(ctx context.Context, id int64, entity core.EntityType) ([]core.HistoryEntry, error) {
	return s.History(ctx, entity, id)
}

func findSeed(rows []core.HistoryEntry) (core.HistoryEntry, bool) {
	for _, h := range rows {
		if h.TransactionID == 0 {
			return h, true
		}
	}
	return core.HistoryEntry{}, false
}

// createSeed writes the starting balance row for a new bucket.
func createSeed(ctx context.Context, tx *storage.SQLiteRepository, b core.Bucket, date core.Date) error {
	_, err := tx.CreateHistory(ctx, core.HistoryEntry{
		EntityID:     b.ID,
		EntityType:   b.Entity,
		ChangeAmount: b.StartingBalance,
		RunningTotal: b.StartingBalance,
		Date:         date,
		Description:  seedDescription,
	})
	return err
}

// appendHistory adds the history row for t in date order, moving the seed
// before t when needed, and re-chains the running totals after it.
func appendHistory(ctx context.Context, tx *storage.SQLiteRepository, b core.Bucket, t core.Transaction) error {
	rows, err := tx.ListHistory(ctx, b.Entity, b.ID)
	if err != nil {
		return err
	}
	seed, ok := findSeed(rows)
	switch {
	case !ok:
		if err := createSeed(ctx, tx, b, t.Date.AddDays(-1)); err != nil {
			return err
		}
	case !seed.Date.Before(t.Date):
		seed.Date = t.Date.AddDays(-1)
		if err := tx.UpdateHistory(ctx, seed); err != nil {
			return err
		}
	}

	if _, err := tx.CreateHistory(ctx, core.HistoryEntry{
		TransactionID: t.ID,
		EntityID:      b.ID,
		EntityType:    b.Entity,
		ChangeAmount:  t.BalanceDelta,
		Date:          t.Date,
		Description:   t.Description,
	}); err != nil {
		return err
	}
	_, err = rechain(ctx, tx, b.Entity, b.ID)
	return err
}

// rechain recomputes every running total from the change amounts in
// (date, id) order and returns the final total.
func rechain(ctx context.Context, tx *storage.SQLiteRepository, entity core.EntityType, id int64) (core.Money, error) {
	rows, err := tx.ListHistory(ctx, entity, id)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, h := range rows {
		total = total.Add(h.ChangeAmount)
		if h.RunningTotal == total {
			continue
		}
		h.RunningTotal = total
		if err := tx.UpdateHistory(ctx, h); err != nil {
			return core.Money{}, err
		}
	}
	return total, nil
}

// ledgerAudit is the state gathered for one bucket.
type ledgerAudit struct {
	bucket  core.Bucket
	rows    []core.HistoryEntry
	txs     []core.Transaction
	orphans []core.HistoryEntry
	derived core.Money
	issues  []string
}

func (a *ledgerAudit) addIssue(format string, args ...any) {
	a.issues = append(a.issues, fmt.Sprintf(format, args...))
}

func inspectLedger(ctx context.Context, tx *storage.SQLiteRepository, entity core.EntityType, id int64) (*ledgerAudit, error) {
	b, err := tx.GetBucket(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	a := &ledgerAudit{bucket: b}
	if a.rows, err = tx.ListHistory(ctx, entity, id); err != nil {
		return nil, err
	}
	if a.orphans, err = tx.ListOrphanHistory(ctx, entity, id); err != nil {
		return nil, err
	}
	filter := core.TransactionFilter{AccountID: id}
	if entity == core.BillEntity {
		filter = core.TransactionFilter{BillID: id}
	}
	if a.txs, err = tx.ListTransactions(ctx, filter); err != nil {
		return nil, err
	}
	if a.derived, err = derivedBalance(ctx, tx, entity, id); err != nil {
		return nil, err
	}

	var (
		seeds    []core.HistoryEntry
		byTx     = make(map[int64]core.HistoryEntry)
		first    core.Date
		previous core.Money
	)
	for i, h := range a.rows {
		if h.TransactionID == 0 {
			seeds = append(seeds, h)
		} else {
			byTx[h.TransactionID] = h
			if first.IsZero() || h.Date.Before(first) {
				first = h.Date
			}
		}
		if i > 0 && h.RunningTotal != previous.Add(h.ChangeAmount) {
			a.addIssue("replay breaks at history row %d: %s + %s != %s", h.ID, previous, h.ChangeAmount, h.RunningTotal)
		}
		if i == 0 && h.RunningTotal != h.ChangeAmount {
			a.addIssue("first history row %d has running total %s, change %s", h.ID, h.RunningTotal, h.ChangeAmount)
		}
		previous = h.RunningTotal
	}

	switch len(seeds) {
	case 0:
		a.addIssue("missing seed row")
	case 1:
		seed := seeds[0]
		if seed.ChangeAmount != b.StartingBalance {
			a.addIssue("seed row %d holds %s, starting balance is %s", seed.ID, seed.ChangeAmount, b.StartingBalance)
		}
		if !first.IsZero() && !seed.Date.Before(first) {
			a.addIssue("seed row %d dated %s, not before first transaction on %s", seed.ID, seed.Date, first)
		}
	default:
		a.addIssue("%d seed rows", len(seeds))
	}

	for _, h := range a.orphans {
		a.addIssue("orphan history row %d for transaction %d", h.ID, h.TransactionID)
	}
	for _, t := range a.txs {
		h, ok := byTx[t.ID]
		if !ok {
			a.addIssue("transaction %d has no history row", t.ID)
			continue
		}
		if h.ChangeAmount != t.BalanceDelta {
			a.addIssue("history row %d changes %s, transaction %d moved %s", h.ID, h.ChangeAmount, t.ID, t.BalanceDelta)
		}
	}
	if b.RunningTotal != a.derived {
		a.addIssue("cached balance %s differs from derived %s", b.RunningTotal, a.derived)
	}
	return a, nil
}

// repair rebuilds the ledger from the transactions: one seed dated before
// the first transaction, one row per transaction, re-chained totals and
// the cached balance set to the derived one.
func (a *ledgerAudit) repair(ctx context.Context, tx *storage.SQLiteRepository, today core.Date) error {
	b := a.bucket
	orphan := make(map[int64]bool, len(a.orphans))
	for _, h := range a.orphans {
		orphan[h.ID] = true
		if err := tx.DeleteHistory(ctx, h.ID); err != nil {
			return err
		}
	}

	var (
		seed    core.HistoryEntry
		hasSeed bool
		byTx    = make(map[int64]core.HistoryEntry)
	)
	for _, h := range a.rows {
		if orphan[h.ID] {
			continue
		}
		if h.TransactionID != 0 {
			byTx[h.TransactionID] = h
			continue
		}
		if hasSeed {
			if err := tx.DeleteHistory(ctx, h.ID); err != nil {
				return err
			}
			continue
		}
		seed, hasSeed = h, true
	}

	var first core.Date
	for _, t := range a.txs {
		if first.IsZero() || t.Date.Before(first) {
			first = t.Date
		}
		h, ok := byTx[t.ID]
		if !ok {
			if _, err := tx.CreateHistory(ctx, core.HistoryEntry{
				TransactionID: t.ID,
				EntityID:      b.ID,
				EntityType:    b.Entity,
				ChangeAmount:  t.BalanceDelta,
				Date:          t.Date,
				Description:   t.Description,
			}); err != nil {
				return err
			}
			continue
		}
		if h.ChangeAmount != t.BalanceDelta || !h.Date.Equal(t.Date) {
			h.ChangeAmount = t.BalanceDelta
			h.Date = t.Date
			if err := tx.UpdateHistory(ctx, h); err != nil {
				return err
			}
		}
	}

	switch {
	case !hasSeed:
		date := today
		if !first.IsZero() {
			date = first.AddDays(-1)
		}
		if err := createSeed(ctx, tx, b, date); err != nil {
			return err
		}
	default:
		seed.ChangeAmount = b.StartingBalance
		if !first.IsZero() && !seed.Date.Before(first) {
			seed.Date = first.AddDays(-1)
		}
		if err := tx.UpdateHistory(ctx, seed); err != nil {
			return err
		}
	}

	total, err := rechain(ctx, tx, b.Entity, b.ID)
	if err != nil {
		return err
	}
	if total != a.derived {
		return &core.ConsistencyError{Entity: b.Entity, ID: b.ID, Issues: []string{
			fmt.Sprintf("rebuilt history ends at %s, derived balance is %s", total, a.derived),
		}}
	}
	return tx.SetRunningTotal(ctx, b.Entity, b.ID, a.derived)
}

// AuditAndRepair checks the ledger of one account or bill. Without repair
// any defect is returned as a *core.ConsistencyError; with repair every
// defect is fixed in one transaction.
func (s *LedgerService) AuditAndRepair(ctx context.Context, entity core.EntityType, id int64, repair bool) (AuditReport, error) {
	if !entity.Valid() {
		return AuditReport{}, core.Invalid("entity_type", "unknown entity type %q", entity)
	}
	report := AuditReport{Entity: entity, ID: id}
	err := s.storage.InTx(ctx, func(tx *storage.SQLiteRepository) error {
		a, err := inspectLedger(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		report.Name = a.bucket.Name
		report.Issues = a.issues
		if !repair || len(a.issues) == 0 {
			return nil
		}
		if err := a.repair(ctx, tx, s.today()); err != nil {
			return err
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("audit %s %d: %w", entity, id, err)
	}
	if len(report.Issues) == 0 {
		return report, nil
	}

	metrics.AuditIssues.WithLabelValues(string(entity)).Add(float64(len(report.Issues)))
	if !report.Repaired {
		slog.WarnContext(ctx, "Ledger audit found issues",
			"entity_type", entity,
			"entity_id", id,
			"issues", len(report.Issues))
		return report, &core.ConsistencyError{Entity: entity, ID: id, Issues: report.Issues}
	}

	slog.InfoContext(ctx, "Ledger repaired",
		"entity_type", entity,
		"entity_id", id,
		"issues", len(report.Issues))
	s.publish(ctx, amqp.NewLedgerEvent(amqp.LedgerRepaired).Touch(string(entity), id))
	return report, nil
}

// AuditAll audits every account and bill and returns the reports that
// found issues. Without repair the returned error joins one
// *core.ConsistencyError per inconsistent bucket.
func (s *LedgerService) AuditAll(ctx context.Context, repair bool) ([]AuditReport, error) {
	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return nil, err
	}

	type ref struct {
		entity core.EntityType
		id     int64
	}
	refs := make([]ref, 0, len(accounts)+len(bills))
	for _, a := range accounts {
		refs = append(refs, ref{core.SavingsEntity, a.ID})
	}
	for _, b := range bills {
		refs = append(refs, ref{core.BillEntity, b.ID})
	}

	var (
		reports []AuditReport
		errs    []error
	)
	for _, r := range refs {
		report, err := s.AuditAndRepair(ctx, r.entity, r.id, repair)
		if len(report.Issues) > 0 {
			reports = append(reports, report)
		}
		if err != nil {
			var ce *core.ConsistencyError
			if !errors.As(err, &ce) {
				return reports, err
			}
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}
