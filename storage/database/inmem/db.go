// Package inmemdb is a process local store implementing every repository; used by tests and the memory engine.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/payment"
	"github.com/trezcool/bursary/core/penalty"
	"github.com/trezcool/bursary/core/user"
)

type txKey struct{}

type tables struct {
	users         []user.User
	faculties     []course.Faculty
	courses       []course.Course
	fees          []fee.Structure
	enrollments   []enrollment.Enrollment
	payments      []payment.Payment
	penalties     []penalty.Penalty
	notifications []notification.Notification
	entries       []ledger.Entry
}

func (t tables) clone() tables {
	return tables{
		users:         append([]user.User(nil), t.users...),
		faculties:     append([]course.Faculty(nil), t.faculties...),
		courses:       append([]course.Course(nil), t.courses...),
		fees:          append([]fee.Structure(nil), t.fees...),
		enrollments:   append([]enrollment.Enrollment(nil), t.enrollments...),
		payments:      append([]payment.Payment(nil), t.payments...),
		penalties:     append([]penalty.Penalty(nil), t.penalties...),
		notifications: append([]notification.Notification(nil), t.notifications...),
		entries:       append([]ledger.Entry(nil), t.entries...),
	}
}

// DB holds every table in memory.
// A unit of work holds the write lock for its whole duration, which also serializes concurrent units of work
// on the same student account.
type DB struct {
	mu sync.RWMutex
	tables
}

func Open() *DB {
	return &DB{}
}

func newID() string {
	return uuid.New().String()
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// WithinTx implements core.Transactor: tables are restored from a snapshot if fn fails.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.tables.clone()
	defer func() {
		if p := recover(); p != nil {
			db.tables = snapshot
			panic(p)
		}
		if err != nil {
			db.tables = snapshot
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, db))
}

func (db *DB) read(ctx context.Context, fn func()) {
	if !db.inTx(ctx) {
		db.mu.RLock()
		defer db.mu.RUnlock()
	}
	fn()
}

func (db *DB) write(ctx context.Context, fn func() error) error {
	if !db.inTx(ctx) {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	return fn()
}

// Truncate empties every table.
func (db *DB) Truncate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = tables{}
}
