package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/bursary/core/fee"
)

type feeRepository struct {
	db *DB
}

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) QueryStructures(ctx context.Context, filter *fee.QueryFilter) ([]fee.Structure, error) {
	rows := make([]fee.Structure, 0)
	repo.db.read(ctx, func() {
		for _, s := range repo.db.fees {
			if filter != nil {
				if filter.Category != "" && s.Category != filter.Category {
					continue
				}
				if filter.ActiveOnly && !s.IsActive {
					continue
				}
			}
			rows = append(rows, s)
		}
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		return rows[i].DisplayOrder < rows[j].DisplayOrder
	})
	return rows, nil
}

func (repo *feeRepository) GetStructure(ctx context.Context, id string) (s fee.Structure, err error) {
	err = fee.ErrNotFound
	repo.db.read(ctx, func() {
		if i := repo.db.feeIndex(id); i >= 0 {
			s, err = repo.db.fees[i], nil
		}
	})
	return s, err
}

func (repo *feeRepository) CreateStructure(ctx context.Context, s fee.Structure) (fee.Structure, error) {
	err := repo.db.write(ctx, func() error {
		s.ID = newID()
		repo.db.fees = append(repo.db.fees, s)
		return nil
	})
	return s, err
}

func (repo *feeRepository) UpdateStructure(ctx context.Context, s fee.Structure) (fee.Structure, error) {
	err := repo.db.write(ctx, func() error {
		i := repo.db.feeIndex(s.ID)
		if i < 0 {
			return fee.ErrNotFound
		}
		repo.db.fees[i] = s
		return nil
	})
	if err != nil {
		return fee.Structure{}, err
	}
	return s, nil
}

func (repo *feeRepository) DeleteStructure(ctx context.Context, id string) error {
	return repo.db.write(ctx, func() error {
		i := repo.db.feeIndex(id)
		if i < 0 {
			return fee.ErrNotFound
		}
		repo.db.fees = append(repo.db.fees[:i:i], repo.db.fees[i+1:]...)
		return nil
	})
}

func (db *DB) feeIndex(id string) int {
	for i, s := range db.fees {
		if s.ID == id {
			return i
		}
	}
	return -1
}
