package inmemdb

import (
	"context"

	"github.com/trezcool/bursary/core/penalty"
)

type penaltyRepository struct {
	db *DB
}

func NewPenaltyRepository(db *DB) penalty.Repository {
	return &penaltyRepository{db: db}
}

func (repo *penaltyRepository) CreatePenalty(ctx context.Context, p penalty.Penalty) (penalty.Penalty, error) {
	err := repo.db.write(ctx, func() error {
		p.ID = newID()
		repo.db.penalties = append(repo.db.penalties, p)
		return nil
	})
	return p, err
}

func (repo *penaltyRepository) QueryPenalties(ctx context.Context, studentID string) ([]penalty.Penalty, error) {
	penalties := make([]penalty.Penalty, 0)
	repo.db.read(ctx, func() {
		for i := len(repo.db.penalties) - 1; i >= 0; i-- {
			if p := repo.db.penalties[i]; studentID == "" || p.StudentID == studentID {
				penalties = append(penalties, p)
			}
		}
	})
	return penalties, nil
}
