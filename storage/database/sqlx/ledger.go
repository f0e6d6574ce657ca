package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core/audit"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/storage/database"
)

var errLockOutsideTx = errors.New("account lock requires a transaction")

// entryRow converts to and from ledger.Entry.
type entryRow struct {
	ID          string          `db:"id"`
	StudentID   string          `db:"student_id"`
	Kind        string          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	SourceID    string          `db:"source_id"`
	Description string          `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

type ledgerRepository struct {
	repo
}

func NewLedgerRepository(db *database.DB) ledger.Repository {
	return &ledgerRepository{repo{db: db}}
}

// LockAccount takes a row lock on the student, held until the transaction ends.
func (repo *ledgerRepository) LockAccount(ctx context.Context, studentID string) error {
	if !database.InTx(ctx) {
		return errLockOutsideTx
	}
	var id string
	err := sqlx.GetContext(ctx, repo.ext(ctx), &id, "SELECT id FROM users WHERE id::text = $1 FOR UPDATE", studentID)
	return notFound(err, ledger.ErrAccountNotFound)
}

func (repo *ledgerRepository) AppendEntries(ctx context.Context, entries ...ledger.Entry) error {
	q := `INSERT INTO ledger_entries (id, student_id, kind, amount, source_id, description, created_at)
		VALUES (:id, :student_id, :kind, :amount, :source_id, :description, :created_at)`
	for _, e := range entries {
		e.ID = newID()
		if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, entryRow(e)); err != nil {
			return errors.Wrap(err, "inserting ledger entry")
		}
	}
	return nil
}

func (repo *ledgerRepository) Balance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	q := "SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE student_id::text = $1"
	err := sqlx.GetContext(ctx, repo.ext(ctx), &bal, q, studentID)
	return bal, errors.Wrap(err, "summing ledger")
}

func (repo *ledgerRepository) QueryEntries(ctx context.Context, studentID string) ([]ledger.Entry, error) {
	var rows []entryRow
	q := `SELECT id, student_id, kind, amount, source_id, description, created_at FROM ledger_entries
		WHERE student_id::text = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying ledger")
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ledger.Entry(row))
	}
	return entries, nil
}

func (repo *ledgerRepository) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []struct {
		StudentID string          `db:"student_id"`
		Balance   decimal.Decimal `db:"balance"`
	}
	q := "SELECT student_id, SUM(amount) AS balance FROM ledger_entries GROUP BY student_id"
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q); err != nil {
		return nil, errors.Wrap(err, "summing ledgers")
	}
	balances := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		balances[r.StudentID] = r.Balance
	}
	return balances, nil
}

type auditRepository struct {
	repo
}

func NewAuditRepository(db *database.DB) audit.Repository {
	return &auditRepository{repo{db: db}}
}

func (repo *auditRepository) SourceTotals(ctx context.Context) ([]audit.Totals, error) {
	var rows []struct {
		StudentID        string          `db:"student_id"`
		ActiveFees       decimal.Decimal `db:"active_fees"`
		Penalties        decimal.Decimal `db:"penalties"`
		ReceivedPayments decimal.Decimal `db:"received_payments"`
	}
	q := `SELECT student_id,
			COALESCE(SUM(fee), 0) AS active_fees,
			COALESCE(SUM(penalty), 0) AS penalties,
			COALESCE(SUM(paid), 0) AS received_payments
		FROM (
			SELECT student_id, course_fee AS fee, 0 AS penalty, 0 AS paid FROM enrollments WHERE status = 'ACTIVE'
			UNION ALL
			SELECT student_id, 0, amount, 0 FROM penalties
			UNION ALL
			SELECT student_id, 0, 0, amount FROM payments WHERE status = 'RECEIVED'
		) src
		GROUP BY student_id
		ORDER BY student_id`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q); err != nil {
		return nil, errors.Wrap(err, "summing source rows")
	}
	totals := make([]audit.Totals, 0, len(rows))
	for _, r := range rows {
		totals = append(totals, audit.Totals(r))
	}
	return totals, nil
}
