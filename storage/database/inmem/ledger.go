package inmemdb

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core/audit"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/payment"
)

type ledgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

// LockAccount only checks the account exists: the unit of work already holds the store wide write lock.
func (repo *ledgerRepository) LockAccount(ctx context.Context, studentID string) (err error) {
	err = ledger.ErrAccountNotFound
	repo.db.read(ctx, func() {
		for _, u := range repo.db.users {
			if u.ID == studentID {
				err = nil
				return
			}
		}
	})
	return err
}

func (repo *ledgerRepository) AppendEntries(ctx context.Context, entries ...ledger.Entry) error {
	return repo.db.write(ctx, func() error {
		for _, e := range entries {
			e.ID = newID()
			repo.db.entries = append(repo.db.entries, e)
		}
		return nil
	})
}

func (repo *ledgerRepository) Balance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	entries, err := repo.QueryEntries(ctx, studentID)
	return ledger.Sum(entries), err
}

func (repo *ledgerRepository) QueryEntries(ctx context.Context, studentID string) ([]ledger.Entry, error) {
	entries := make([]ledger.Entry, 0)
	repo.db.read(ctx, func() {
		for _, e := range repo.db.entries {
			if e.StudentID == studentID {
				entries = append(entries, e)
			}
		}
	})
	return entries, nil
}

func (repo *ledgerRepository) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal)
	repo.db.read(ctx, func() {
		for _, e := range repo.db.entries {
			balances[e.StudentID] = balances[e.StudentID].Add(e.Amount)
		}
	})
	return balances, nil
}

type auditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) SourceTotals(ctx context.Context) ([]audit.Totals, error) {
	byStudent := make(map[string]*audit.Totals)
	var order []string
	get := func(id string) *audit.Totals {
		t, ok := byStudent[id]
		if !ok {
			t = &audit.Totals{StudentID: id, ActiveFees: decimal.Zero, Penalties: decimal.Zero, ReceivedPayments: decimal.Zero}
			byStudent[id] = t
			order = append(order, id)
		}
		return t
	}

	repo.db.read(ctx, func() {
		for _, e := range repo.db.enrollments {
			if e.Status == enrollment.StatusActive {
				t := get(e.StudentID)
				t.ActiveFees = t.ActiveFees.Add(e.CourseFee)
			}
		}
		for _, p := range repo.db.penalties {
			t := get(p.StudentID)
			t.Penalties = t.Penalties.Add(p.Amount)
		}
		for _, p := range repo.db.payments {
			if p.Status == payment.StatusReceived {
				t := get(p.StudentID)
				t.ReceivedPayments = t.ReceivedPayments.Add(p.Amount)
			}
		}
	})

	totals := make([]audit.Totals, 0, len(order))
	for _, id := range order {
		totals = append(totals, *byStudent[id])
	}
	return totals, nil
}
