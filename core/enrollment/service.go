package enrollment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/user"
)

var ErrNotFound = core.NewNotFoundError("enrollment not found")

type (
	Repository interface {
		CreateEnrollments(ctx context.Context, enrollments ...Enrollment) ([]Enrollment, error)
		// QueryEnrollments returns matching enrollments, oldest first.
		QueryEnrollments(ctx context.Context, filter QueryFilter) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	}

	CourseFinder interface {
		GetMany(ctx context.Context, ids []string) ([]course.Course, error)
	}

	Pricer interface {
		Price(ctx context.Context, courses []course.Course, includeBus bool) (fee.Calculation, error)
	}

	BusSubscriber interface {
		SetBusService(ctx context.Context, usr user.User, enabled bool) (user.User, error)
	}

	Deps struct {
		Tx            core.Transactor
		Repo          Repository
		Courses       CourseFinder
		Fees          Pricer
		Users         BusSubscriber
		Ledger        *ledger.Service
		Notifications *notification.Service
		DueDays       int
	}

	Service struct {
		Deps
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// Enroll creates ACTIVE enrollments for courseIDs and charges their fees.
// Enrollments, FEE ledger entries and the notification are written in one unit of work.
func (svc *Service) Enroll(ctx context.Context, student user.User, req EnrollRequest) (EnrollResult, error) {
	var res EnrollResult
	var note notification.Notification

	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.Ledger.Lock(ctx, student.ID); err != nil {
			return err
		}

		courses, err := svc.Courses.GetMany(ctx, req.CourseIDs)
		if err != nil {
			return err
		}
		active, err := svc.Repo.QueryEnrollments(ctx, QueryFilter{StudentID: student.ID, Status: StatusActive})
		if err != nil {
			return errors.Wrap(err, "querying active enrollments")
		}
		enrolled := make(map[string]struct{}, len(active))
		for _, e := range active {
			enrolled[e.CourseID] = struct{}{}
		}

		now := time.Now().UTC()
		news := make([]Enrollment, 0, len(courses))
		for _, c := range courses {
			if _, ok := enrolled[c.ID]; ok {
				return core.NewConflictError("already enrolled in " + c.Code)
			}
			news = append(news, Enrollment{
				StudentID:  student.ID,
				CourseID:   c.ID,
				CourseFee:  c.TotalFee,
				Status:     StatusActive,
				EnrolledAt: now,
			})
		}
		created, err := svc.Repo.CreateEnrollments(ctx, news...)
		if err != nil {
			return errors.Wrap(err, "creating enrollments")
		}

		entries := make([]ledger.Entry, 0, len(created))
		res.AmountCharged = decimal.Zero
		for i, e := range created {
			entries = append(entries, ledger.NewEntry(student.ID, ledger.KindFee, e.CourseFee, e.ID, "Enrollment fee: "+courses[i].Code))
			res.AmountCharged = res.AmountCharged.Add(e.CourseFee)
			res.Enrollments = append(res.Enrollments, detail(e, courses[i]))
		}
		if res.DuesBalance, err = svc.Ledger.Post(ctx, student.ID, entries...); err != nil {
			return errors.Wrap(err, "posting enrollment fees")
		}

		includeBus := student.HasBusService
		if req.IncludeBus != nil {
			includeBus = *req.IncludeBus
			if _, err = svc.Users.SetBusService(ctx, student, includeBus); err != nil {
				return errors.Wrap(err, "setting bus service")
			}
		}
		if res.Fees, err = svc.Fees.Price(ctx, courses, includeBus); err != nil {
			return errors.Wrap(err, "pricing courses")
		}
		res.PaymentDueDate = fee.DueDate(now, svc.DueDays)

		note, err = svc.Notifications.Record(ctx, student.ID, notification.TypeEnrollment, enrollMessage(courses, res))
		return err
	})
	if err != nil {
		return EnrollResult{}, err
	}

	svc.Notifications.Dispatch(ctx, note)
	return res, nil
}

// Drop ends the ACTIVE enrollment of student in courseID and reverses its frozen fee.
func (svc *Service) Drop(ctx context.Context, student user.User, courseID string) (DropResult, error) {
	var res DropResult
	var note notification.Notification

	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.Ledger.Lock(ctx, student.ID); err != nil {
			return err
		}

		active, err := svc.Repo.QueryEnrollments(ctx, QueryFilter{StudentID: student.ID, CourseID: courseID, Status: StatusActive})
		if err != nil {
			return errors.Wrap(err, "querying enrollment")
		}
		if len(active) == 0 {
			return ErrNotFound
		}
		courses, err := svc.Courses.GetMany(ctx, []string{courseID})
		if err != nil {
			return err
		}

		e := active[0]
		now := time.Now().UTC()
		e.Status = StatusDropped
		e.DroppedAt = &now
		if e, err = svc.Repo.UpdateEnrollment(ctx, e); err != nil {
			return errors.Wrap(err, "updating enrollment")
		}

		entry := ledger.NewEntry(student.ID, ledger.KindReversal, e.CourseFee, e.ID, "Course dropped: "+courses[0].Code)
		if res.DuesBalance, err = svc.Ledger.Post(ctx, student.ID, entry); err != nil {
			return errors.Wrap(err, "posting reversal")
		}
		res.Enrollment = detail(e, courses[0])
		res.Refunded = e.CourseFee

		msg := fmt.Sprintf("You dropped %s. %s was removed from your dues. Remaining dues: %s",
			courses[0].Code, core.FormatMoney(e.CourseFee), core.FormatMoney(res.DuesBalance))
		note, err = svc.Notifications.Record(ctx, student.ID, notification.TypeEnrollmentDrop, msg)
		return err
	})
	if err != nil {
		return DropResult{}, err
	}

	svc.Notifications.Dispatch(ctx, note)
	return res, nil
}

// Details returns the enrollments of a student matching status (all when empty) with their courses.
func (svc *Service) Details(ctx context.Context, studentID, status string) ([]Detail, error) {
	enrollments, err := svc.Repo.QueryEnrollments(ctx, QueryFilter{StudentID: studentID, Status: status})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	details := make([]Detail, 0, len(enrollments))
	if len(enrollments) == 0 {
		return details, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := svc.Courses.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting enrolled courses")
	}
	byID := make(map[string]course.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	for _, e := range enrollments {
		details = append(details, detail(e, byID[e.CourseID]))
	}
	return details, nil
}

// Status reports the enrollments and the dues balance of a student.
func (svc *Service) Status(ctx context.Context, student user.User) (StatusReport, error) {
	details, err := svc.Details(ctx, student.ID, "")
	if err != nil {
		return StatusReport{}, err
	}
	balance, err := svc.Ledger.Balance(ctx, student.ID)
	if err != nil {
		return StatusReport{}, errors.Wrap(err, "getting balance")
	}

	report := StatusReport{
		UserID:          student.ID,
		Username:        student.Username,
		Email:           student.Email,
		DuesBalance:     balance,
		Enrollments:     details,
		TotalCourseFees: decimal.Zero,
	}
	for _, d := range details {
		if d.IsActive() {
			report.TotalEnrolledCourses++
			report.TotalCourseFees = report.TotalCourseFees.Add(d.CourseFee)
		}
	}
	return report, nil
}

// FeeBreakdown prices the active enrollments of a student against the current schedule.
func (svc *Service) FeeBreakdown(ctx context.Context, student user.User) (Breakdown, error) {
	active, err := svc.Repo.QueryEnrollments(ctx, QueryFilter{StudentID: student.ID, Status: StatusActive})
	if err != nil {
		return Breakdown{}, errors.Wrap(err, "querying active enrollments")
	}
	ids := make([]string, 0, len(active))
	var latest time.Time
	for _, e := range active {
		ids = append(ids, e.CourseID)
		if e.EnrolledAt.After(latest) {
			latest = e.EnrolledAt
		}
	}

	courses := make([]course.Course, 0)
	if len(ids) > 0 {
		if courses, err = svc.Courses.GetMany(ctx, ids); err != nil {
			return Breakdown{}, errors.Wrap(err, "getting enrolled courses")
		}
	}
	calc, err := svc.Fees.Price(ctx, courses, student.HasBusService)
	if err != nil {
		return Breakdown{}, errors.Wrap(err, "pricing enrollments")
	}

	b := Breakdown{Calculation: calc, Message: calc.Message()}
	if !latest.IsZero() {
		due := fee.DueDate(latest, svc.DueDays)
		b.PaymentDueDate = &due
	}
	return b, nil
}

func detail(e Enrollment, c course.Course) Detail {
	return Detail{
		Enrollment:  e,
		CourseCode:  c.Code,
		CourseName:  c.Name,
		CreditHours: c.CreditHours,
	}
}

func enrollMessage(courses []course.Course, res EnrollResult) string {
	codes := make([]string, 0, len(courses))
	for _, c := range courses {
		codes = append(codes, c.Code)
	}
	return fmt.Sprintf("Enrolled in %d course(s): %s. Amount charged: %s. Remaining dues: %s. Payment due by %s.",
		len(courses), strings.Join(codes, ", "), core.FormatMoney(res.AmountCharged),
		core.FormatMoney(res.DuesBalance), res.PaymentDueDate.Format("2006-01-02"))
}
