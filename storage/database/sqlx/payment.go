package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursary/core/payment"
	"github.com/trezcool/bursary/storage/database"
)

const paymentColumns = `id, student_id, amount, method, status, reference_number, notes, proof_document, recorded_by,
	verified_by, verified_at, rejection_reason, paid_at`

type paymentRow struct {
	ID              string          `db:"id"`
	StudentID       string          `db:"student_id"`
	Amount          decimal.Decimal `db:"amount"`
	Method          string          `db:"method"`
	Status          string          `db:"status"`
	ReferenceNumber null.String     `db:"reference_number"`
	Notes           string          `db:"notes"`
	ProofDocument   null.String     `db:"proof_document"`
	RecordedBy      null.String     `db:"recorded_by"`
	VerifiedBy      null.String     `db:"verified_by"`
	VerifiedAt      null.Time       `db:"verified_at"`
	RejectionReason string          `db:"rejection_reason"`
	PaidAt          time.Time       `db:"paid_at"`
}

func toPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:              p.ID,
		StudentID:       p.StudentID,
		Amount:          p.Amount,
		Method:          p.Method,
		Status:          p.Status,
		ReferenceNumber: nullString(p.ReferenceNumber),
		Notes:           p.Notes,
		ProofDocument:   nullString(p.ProofDocument),
		RecordedBy:      nullString(p.RecordedBy),
		VerifiedBy:      nullString(p.VerifiedBy),
		VerifiedAt:      null.TimeFromPtr(p.VerifiedAt),
		RejectionReason: p.RejectionReason,
		PaidAt:          p.PaidAt,
	}
}

func (r paymentRow) toPayment() payment.Payment {
	return payment.Payment{
		ID:              r.ID,
		StudentID:       r.StudentID,
		Amount:          r.Amount,
		Method:          r.Method,
		Status:          r.Status,
		ReferenceNumber: r.ReferenceNumber.String,
		Notes:           r.Notes,
		ProofDocument:   r.ProofDocument.String,
		RecordedBy:      r.RecordedBy.String,
		VerifiedBy:      r.VerifiedBy.String,
		VerifiedAt:      r.VerifiedAt.Ptr(),
		RejectionReason: r.RejectionReason,
		PaidAt:          r.PaidAt.UTC(),
	}
}

type paymentRepository struct {
	repo
}

func NewPaymentRepository(db *database.DB) payment.Repository {
	return &paymentRepository{repo{db: db}}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = newID()
	q := `INSERT INTO payments (` + paymentColumns + `) VALUES (:id, :student_id, :amount, :method, :status,
		:reference_number, :notes, :proof_document, :recorded_by, :verified_by, :verified_at, :rejection_reason, :paid_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toPaymentRow(p)); err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	var row paymentRow
	q := "SELECT " + paymentColumns + " FROM payments WHERE id::text = $1"
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, id); err != nil {
		return payment.Payment{}, notFound(err, payment.ErrNotFound)
	}
	return row.toPayment(), nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	q := `UPDATE payments SET status = :status, verified_by = :verified_by, verified_at = :verified_at,
		rejection_reason = :rejection_reason, proof_document = :proof_document
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toPaymentRow(p))
	if err != nil {
		return payment.Payment{}, notFound(err, payment.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Payment{}, payment.ErrNotFound
	}
	return p, nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var rows []paymentRow
	q := "SELECT " + paymentColumns + " FROM payments" + w.String() + " ORDER BY paid_at DESC, id"
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toPayment())
	}
	return payments, nil
}
