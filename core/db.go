package core

import "context"

// Transactor runs a unit of work.
// Every repository call made with the ctx handed to fn joins the same unit of work; if fn returns an error (or
// panics) nothing it wrote is kept.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

