package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/storage/database"
)

const feeColumns = "id, category, name, amount, is_per_credit, is_active, display_order, created_at, updated_at"

// feeRow converts to and from fee.Structure.
type feeRow struct {
	ID           string          `db:"id"`
	Category     string          `db:"category"`
	Name         string          `db:"name"`
	Amount       decimal.Decimal `db:"amount"`
	IsPerCredit  bool            `db:"is_per_credit"`
	IsActive     bool            `db:"is_active"`
	DisplayOrder int             `db:"display_order"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

type feeRepository struct {
	repo
}

func NewFeeRepository(db *database.DB) fee.Repository {
	return &feeRepository{repo{db: db}}
}

func (repo *feeRepository) QueryStructures(ctx context.Context, filter *fee.QueryFilter) ([]fee.Structure, error) {
	var w where
	if filter != nil {
		if filter.Category != "" {
			w.add("category = ?", filter.Category)
		}
		if filter.ActiveOnly {
			w.add("is_active = ?", true)
		}
	}
	var rows []feeRow
	q := "SELECT " + feeColumns + " FROM fee_structures" + w.String() + " ORDER BY category, display_order, created_at"
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]fee.Structure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, fee.Structure(row))
	}
	return structures, nil
}

func (repo *feeRepository) GetStructure(ctx context.Context, id string) (fee.Structure, error) {
	var row feeRow
	q := "SELECT " + feeColumns + " FROM fee_structures WHERE id::text = $1"
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, id); err != nil {
		return fee.Structure{}, notFound(err, fee.ErrNotFound)
	}
	return fee.Structure(row), nil
}

func (repo *feeRepository) CreateStructure(ctx context.Context, s fee.Structure) (fee.Structure, error) {
	s.ID = newID()
	q := `INSERT INTO fee_structures (` + feeColumns + `)
		VALUES (:id, :category, :name, :amount, :is_per_credit, :is_active, :display_order, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, feeRow(s)); err != nil {
		return fee.Structure{}, errors.Wrap(err, "inserting fee structure")
	}
	return s, nil
}

func (repo *feeRepository) UpdateStructure(ctx context.Context, s fee.Structure) (fee.Structure, error) {
	q := `UPDATE fee_structures SET category = :category, name = :name, amount = :amount,
		is_per_credit = :is_per_credit, is_active = :is_active, display_order = :display_order, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, feeRow(s))
	if err != nil {
		return fee.Structure{}, notFound(err, fee.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Structure{}, fee.ErrNotFound
	}
	return s, nil
}

func (repo *feeRepository) DeleteStructure(ctx context.Context, id string) error {
	res, err := repo.ext(ctx).ExecContext(ctx, "DELETE FROM fee_structures WHERE id::text = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.ErrNotFound
	}
	return nil
}
