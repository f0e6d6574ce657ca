package inmemdb

import (
	"context"

	"github.com/trezcool/bursary/core/payment"
)

type paymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	err := repo.db.write(ctx, func() error {
		p.ID = newID()
		repo.db.payments = append(repo.db.payments, p)
		return nil
	})
	return p, err
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (p payment.Payment, err error) {
	err = payment.ErrNotFound
	repo.db.read(ctx, func() {
		for _, cur := range repo.db.payments {
			if cur.ID == id {
				p, err = cur, nil
				return
			}
		}
	})
	return p, err
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	err := repo.db.write(ctx, func() error {
		for i, cur := range repo.db.payments {
			if cur.ID == p.ID {
				repo.db.payments[i] = p
				return nil
			}
		}
		return payment.ErrNotFound
	})
	if err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, error) {
	payments := make([]payment.Payment, 0)
	repo.db.read(ctx, func() {
		for i := len(repo.db.payments) - 1; i >= 0; i-- {
			p := repo.db.payments[i]
			if (filter.StudentID == "" || p.StudentID == filter.StudentID) &&
				(filter.Status == "" || p.Status == filter.Status) {
				payments = append(payments, p)
			}
		}
	})
	return payments, nil
}
