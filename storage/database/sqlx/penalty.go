package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursary/core/penalty"
	"github.com/trezcool/bursary/storage/database"
)

type penaltyRow struct {
	ID        string          `db:"id"`
	StudentID string          `db:"student_id"`
	Amount    decimal.Decimal `db:"amount"`
	Type      string          `db:"type"`
	Notes     string          `db:"notes"`
	AppliedBy null.String     `db:"applied_by"`
	CreatedAt time.Time       `db:"created_at"`
}

type penaltyRepository struct {
	repo
}

func NewPenaltyRepository(db *database.DB) penalty.Repository {
	return &penaltyRepository{repo{db: db}}
}

func (repo *penaltyRepository) CreatePenalty(ctx context.Context, p penalty.Penalty) (penalty.Penalty, error) {
	p.ID = newID()
	q := `INSERT INTO penalties (id, student_id, amount, type, notes, applied_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.ext(ctx).ExecContext(ctx, q, p.ID, p.StudentID, p.Amount, p.Type, p.Notes, nullString(p.AppliedBy), p.CreatedAt)
	if err != nil {
		return penalty.Penalty{}, errors.Wrap(err, "inserting penalty")
	}
	return p, nil
}

func (repo *penaltyRepository) QueryPenalties(ctx context.Context, studentID string) ([]penalty.Penalty, error) {
	var rows []penaltyRow
	q := `SELECT id, student_id, amount, type, notes, applied_by, created_at FROM penalties
		WHERE student_id::text = $1 ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying penalties")
	}
	penalties := make([]penalty.Penalty, 0, len(rows))
	for _, r := range rows {
		penalties = append(penalties, penalty.Penalty{
			ID:        r.ID,
			StudentID: r.StudentID,
			Amount:    r.Amount,
			Type:      r.Type,
			Notes:     r.Notes,
			AppliedBy: r.AppliedBy.String,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return penalties, nil
}
