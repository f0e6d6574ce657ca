// Package shared wires repositories and services for the api and admin apps.
package shared

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/audit"
	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/payment"
	"github.com/trezcool/bursary/core/penalty"
	"github.com/trezcool/bursary/core/user"
	"github.com/trezcool/bursary/storage/database"
	inmemdb "github.com/trezcool/bursary/storage/database/inmem"
	sqlxrepos "github.com/trezcool/bursary/storage/database/sqlx"
	"github.com/trezcool/bursary/storage/files"
)

// Engines
const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Stores holds one repository per module over a single database engine.
type Stores struct {
	Tx            core.Transactor
	Users         user.Repository
	Courses       course.Repository
	Fees          fee.Repository
	Ledger        ledger.Repository
	Enrollments   enrollment.Repository
	Payments      payment.Repository
	Penalties     penalty.Repository
	Notifications notification.Repository
	Audit         audit.Repository

	// DB is set for the postgres engine only.
	DB    *database.DB
	close func() error
}

func (s Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the configured database engine.
// For postgres, the database is created when missing and, with migrate set, brought to the latest schema version.
func OpenStores(ctx context.Context, conf *core.Config, migrate bool) (Stores, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		return MemoryStores(inmemdb.Open()), nil
	case EnginePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return Stores{}, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening database")
		}
		if migrate {
			if err = database.Migrate(db, "up"); err != nil {
				_ = db.Close()
				return Stores{}, errors.Wrap(err, "migrating database")
			}
		}
		return PostgresStores(db), nil
	default:
		return Stores{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func PostgresStores(db *database.DB) Stores {
	return Stores{
		Tx:            db,
		Users:         sqlxrepos.NewUserRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Fees:          sqlxrepos.NewFeeRepository(db),
		Ledger:        sqlxrepos.NewLedgerRepository(db),
		Enrollments:   sqlxrepos.NewEnrollmentRepository(db),
		Payments:      sqlxrepos.NewPaymentRepository(db),
		Penalties:     sqlxrepos.NewPenaltyRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Audit:         sqlxrepos.NewAuditRepository(db),
		DB:            db,
		close:         db.Close,
	}
}

func MemoryStores(db *inmemdb.DB) Stores {
	return Stores{
		Tx:            db,
		Users:         inmemdb.NewUserRepository(db),
		Courses:       inmemdb.NewCourseRepository(db),
		Fees:          inmemdb.NewFeeRepository(db),
		Ledger:        inmemdb.NewLedgerRepository(db),
		Enrollments:   inmemdb.NewEnrollmentRepository(db),
		Payments:      inmemdb.NewPaymentRepository(db),
		Penalties:     inmemdb.NewPenaltyRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Audit:         inmemdb.NewAuditRepository(db),
	}
}

type Services struct {
	Users         *user.Service
	Courses       *course.Service
	Fees          *fee.Service
	Ledger        *ledger.Service
	Notifications *notification.Service
	Enrollments   *enrollment.Service
	Payments      *payment.Service
	Penalties     *penalty.Service
	Auditor       *audit.Auditor
}

// NewServices builds every use case over stores.
func NewServices(conf *core.Config, stores Stores, mailSvc core.EmailService, logger core.Logger) Services {
	var svc Services
	svc.Users = user.NewService(stores.Users)
	svc.Courses = course.NewService(stores.Courses)
	svc.Fees = fee.NewService(stores.Fees, svc.Courses)
	svc.Ledger = ledger.NewService(stores.Ledger)
	svc.Notifications = notification.NewService(stores.Notifications, svc.Users, mailSvc, logger)
	svc.Enrollments = enrollment.NewService(enrollment.Deps{
		Tx:            stores.Tx,
		Repo:          stores.Enrollments,
		Courses:       svc.Courses,
		Fees:          svc.Fees,
		Users:         svc.Users,
		Ledger:        svc.Ledger,
		Notifications: svc.Notifications,
		DueDays:       conf.Fees.PaymentDueDays,
	})
	svc.Payments = payment.NewService(payment.Deps{
		Tx:            stores.Tx,
		Repo:          stores.Payments,
		Users:         svc.Users,
		Ledger:        svc.Ledger,
		Notifications: svc.Notifications,
		Files:         files.NewLocalStorage(conf.Uploads.Dir, conf.Uploads.MaxBytes),
		Logger:        logger,
	})
	svc.Penalties = penalty.NewService(penalty.Deps{
		Tx:            stores.Tx,
		Repo:          stores.Penalties,
		Users:         svc.Users,
		Ledger:        svc.Ledger,
		Notifications: svc.Notifications,
	})
	svc.Auditor = audit.NewAuditor(stores.Audit, svc.Ledger, logger)
	return svc
}
