// Package ledger keeps the dues of every student as an append-only list of signed entries.
//
// Charges (fees, penalties) are positive and credits (payments, reversals) negative, so the balance of a student
// is always the sum of their entries. Every code path that changes what a student owes posts its entry in the same
// unit of work as the row it derives from; the balance never needs repairing.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
)

// Kinds
const (
	KindFee      = "FEE"
	KindPenalty  = "PENALTY"
	KindPayment  = "PAYMENT"
	KindReversal = "REVERSAL"
)

var ErrAccountNotFound = core.NewNotFoundError("student not found")

type Entry struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"` // signed
	SourceID    string          `json:"source_id"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsCredit reports whether entries of kind lower the balance.
func IsCredit(kind string) bool {
	return kind == KindPayment || kind == KindReversal
}

// NewEntry builds an entry of kind, signing the magnitude amount.
func NewEntry(studentID, kind string, amount decimal.Decimal, sourceID, description string) Entry {
	amount = amount.Abs()
	if IsCredit(kind) {
		amount = amount.Neg()
	}
	return Entry{
		StudentID:   studentID,
		Kind:        kind,
		Amount:      amount,
		SourceID:    sourceID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// Sum returns the balance made of entries.
func Sum(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

type (
	Repository interface {
		// LockAccount serializes balance dependent writes of one student until the surrounding unit of work ends.
		// It returns ErrAccountNotFound for unknown students.
		LockAccount(ctx context.Context, studentID string) error
		AppendEntries(ctx context.Context, entries ...Entry) error
		Balance(ctx context.Context, studentID string) (decimal.Decimal, error)
		// QueryEntries returns the entries of a student, oldest first.
		QueryEntries(ctx context.Context, studentID string) ([]Entry, error)
		// Balances returns the balance of every student holding entries.
		Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	}

	Statement struct {
		StudentID string          `json:"student_id"`
		Balance   decimal.Decimal `json:"balance"`
		Entries   []Entry         `json:"entries"`
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lock must be the first call of a unit of work that validates against the balance before writing.
func (svc *Service) Lock(ctx context.Context, studentID string) error {
	return svc.repo.LockAccount(ctx, studentID)
}

// Post appends entries and returns the new balance of their student.
func (svc *Service) Post(ctx context.Context, studentID string, entries ...Entry) (decimal.Decimal, error) {
	if len(entries) > 0 {
		if err := svc.repo.AppendEntries(ctx, entries...); err != nil {
			return decimal.Zero, err
		}
	}
	return svc.repo.Balance(ctx, studentID)
}

func (svc *Service) Balance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	return svc.repo.Balance(ctx, studentID)
}

func (svc *Service) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	return svc.repo.Balances(ctx)
}

func (svc *Service) Statement(ctx context.Context, studentID string) (Statement, error) {
	entries, err := svc.repo.QueryEntries(ctx, studentID)
	if err != nil {
		return Statement{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Statement{StudentID: studentID, Balance: Sum(entries), Entries: entries}, nil
}
