// Package testutil wires every service over the in-memory store for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

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
	emailsvc "github.com/trezcool/bursary/services/email"
	logsvc "github.com/trezcool/bursary/services/logger"
	inmemdb "github.com/trezcool/bursary/storage/database/inmem"
	"github.com/trezcool/bursary/storage/files"
)

type Env struct {
	DB     *inmemdb.DB
	Mail   *emailsvc.ConsoleServiceMock
	Logger core.Logger
	Files  *files.LocalStorage

	UserRepo user.Repository

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

func NewEnv(t *testing.T) *Env {
	db := inmemdb.Open()
	env := &Env{
		DB:       db,
		Mail:     emailsvc.NewConsoleServiceMock(),
		Logger:   logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.Conf),
		Files:    files.NewLocalStorage(t.TempDir(), core.Conf.Uploads.MaxBytes),
		UserRepo: inmemdb.NewUserRepository(db),
	}

	env.Users = user.NewService(env.UserRepo)
	env.Courses = course.NewService(inmemdb.NewCourseRepository(db))
	env.Fees = fee.NewService(inmemdb.NewFeeRepository(db), env.Courses)
	env.Ledger = ledger.NewService(inmemdb.NewLedgerRepository(db))
	env.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db), env.Users, env.Mail, env.Logger)
	env.Enrollments = enrollment.NewService(enrollment.Deps{
		Tx:            db,
		Repo:          inmemdb.NewEnrollmentRepository(db),
		Courses:       env.Courses,
		Fees:          env.Fees,
		Users:         env.Users,
		Ledger:        env.Ledger,
		Notifications: env.Notifications,
		DueDays:       fee.DefaultPaymentDueDays,
	})
	env.Payments = payment.NewService(payment.Deps{
		Tx:            db,
		Repo:          inmemdb.NewPaymentRepository(db),
		Users:         env.Users,
		Ledger:        env.Ledger,
		Notifications: env.Notifications,
		Files:         env.Files,
		Logger:        env.Logger,
	})
	env.Penalties = penalty.NewService(penalty.Deps{
		Tx:            db,
		Repo:          inmemdb.NewPenaltyRepository(db),
		Users:         env.Users,
		Ledger:        env.Ledger,
		Notifications: env.Notifications,
	})
	env.Auditor = audit.NewAuditor(inmemdb.NewAuditRepository(db), env.Ledger, env.Logger)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateStudent(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Student "+uname, uname, uname+"@test.edu", "", []string{user.RoleStudent}, true)
}

func (env *Env) CreateAdmin(t *testing.T, uname string) user.User {
	return CreateUser(t, env.UserRepo, "Admin "+uname, uname, uname+"@test.edu", "", []string{user.RoleAdminFinance}, true)
}

func (env *Env) CreateCourse(t *testing.T, code string, credits int, totalFee string) course.Course {
	crs, err := env.Courses.Create(context.Background(), course.NewCourse{
		Code:        code,
		Name:        "Course " + code,
		CreditHours: credits,
		TotalFee:    decimal.RequireFromString(totalFee),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func (env *Env) CreateFee(t *testing.T, category, name, amount string, perCredit bool, order int) fee.Structure {
	s, err := env.Fees.Create(context.Background(), fee.NewStructure{
		Category:     category,
		Name:         name,
		Amount:       decimal.RequireFromString(amount),
		IsPerCredit:  perCredit,
		DisplayOrder: order,
	})
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	return s
}

// SeedSchedule creates the reference schedule: $500 per credit, $200 registration, $300 bus.
func (env *Env) SeedSchedule(t *testing.T) {
	env.CreateFee(t, fee.CategoryTuition, "Tuition per credit", "500", true, 1)
	env.CreateFee(t, fee.CategoryTuition, "Registration fee", "200", false, 2)
	env.CreateFee(t, fee.CategoryBus, "Bus service", "300", false, 1)
}

// Charge posts a FEE entry of amount straight to the ledger of student.
func (env *Env) Charge(t *testing.T, studentID, amount string) {
	entry := ledger.NewEntry(studentID, ledger.KindFee, decimal.RequireFromString(amount), "", "test charge")
	if _, err := env.Ledger.Post(context.Background(), studentID, entry); err != nil {
		t.Fatalf("Charge() failed: %v", err)
	}
}

func (env *Env) Balance(t *testing.T, studentID string) decimal.Decimal {
	bal, err := env.Ledger.Balance(context.Background(), studentID)
	if err != nil {
		t.Fatalf("Balance() failed: %v", err)
	}
	return bal
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
