// Package audit checks that the dues ledger agrees with the rows it was derived from.
package audit

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
)

// Totals are the per student sums of the rows that feed the ledger.
type Totals struct {
	StudentID        string
	ActiveFees       decimal.Decimal // frozen fees of ACTIVE enrollments
	Penalties        decimal.Decimal
	ReceivedPayments decimal.Decimal
}

// Expected is the balance the ledger must hold given t.
func (t Totals) Expected() decimal.Decimal {
	return t.ActiveFees.Add(t.Penalties).Sub(t.ReceivedPayments)
}

type Drift struct {
	StudentID     string          `json:"student_id"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Expected      decimal.Decimal `json:"expected_balance"`
	Difference    decimal.Decimal `json:"difference"` // ledger - expected
}

type Report struct {
	RunAt           time.Time `json:"run_at"`
	StudentsChecked int       `json:"students_checked"`
	Consistent      bool      `json:"consistent"`
	Drifts          []Drift   `json:"drifts"`
}

type (
	Repository interface {
		SourceTotals(ctx context.Context) ([]Totals, error)
	}

	BalanceReader interface {
		Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	}

	Auditor struct {
		repo   Repository
		ledger BalanceReader
		logger core.Logger
	}
)

func NewAuditor(repo Repository, ledger BalanceReader, logger core.Logger) *Auditor {
	return &Auditor{repo: repo, ledger: ledger, logger: logger}
}

// Run compares every ledger balance with the balance recomputed from source rows.
// It only reports; nothing is written.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	totals, err := a.repo.SourceTotals(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "computing source totals")
	}
	balances, err := a.ledger.Balances(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "reading ledger balances")
	}

	expected := make(map[string]decimal.Decimal, len(totals))
	for _, t := range totals {
		expected[t.StudentID] = t.Expected()
	}
	students := make(map[string]struct{}, len(expected)+len(balances))
	for id := range expected {
		students[id] = struct{}{}
	}
	for id := range balances {
		students[id] = struct{}{}
	}

	rep := Report{RunAt: time.Now().UTC(), StudentsChecked: len(students), Drifts: []Drift{}}
	for id := range students {
		bal, exp := balances[id], expected[id]
		if !bal.Equal(exp) {
			rep.Drifts = append(rep.Drifts, Drift{StudentID: id, LedgerBalance: bal, Expected: exp, Difference: bal.Sub(exp)})
		}
	}
	sort.Slice(rep.Drifts, func(i, j int) bool { return rep.Drifts[i].StudentID < rep.Drifts[j].StudentID })
	rep.Consistent = len(rep.Drifts) == 0
	return rep, nil
}

// RunAndLog runs the audit and logs what it found; for scheduled runs.
func (a *Auditor) RunAndLog(ctx context.Context) {
	rep, err := a.Run(ctx)
	if err != nil {
		a.logger.Error("ledger audit failed", err)
		return
	}
	if rep.Consistent {
		a.logger.Info("ledger audit: consistent", map[string]interface{}{"students_checked": rep.StudentsChecked})
		return
	}
	for _, d := range rep.Drifts {
		a.logger.Warn("ledger audit: balance drift", map[string]interface{}{
			"student_id": d.StudentID,
			"ledger":     d.LedgerBalance.String(),
			"expected":   d.Expected.String(),
			"difference": d.Difference.String(),
		})
	}
}
