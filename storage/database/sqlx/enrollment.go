package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/storage/database"
)

const enrollmentColumns = "id, student_id, course_id, course_fee, status, enrolled_at, dropped_at"

// enrollmentRow converts to and from enrollment.Enrollment.
type enrollmentRow struct {
	ID         string          `db:"id"`
	StudentID  string          `db:"student_id"`
	CourseID   string          `db:"course_id"`
	CourseFee  decimal.Decimal `db:"course_fee"`
	Status     string          `db:"status"`
	EnrolledAt time.Time       `db:"enrolled_at"`
	DroppedAt  *time.Time      `db:"dropped_at"`
}

type enrollmentRepository struct {
	repo
}

func NewEnrollmentRepository(db *database.DB) enrollment.Repository {
	return &enrollmentRepository{repo{db: db}}
}

func (repo *enrollmentRepository) CreateEnrollments(ctx context.Context, enrollments ...enrollment.Enrollment) ([]enrollment.Enrollment, error) {
	created := make([]enrollment.Enrollment, 0, len(enrollments))
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :student_id, :course_id, :course_fee, :status, :enrolled_at, :dropped_at)`
	for _, e := range enrollments {
		e.ID = newID()
		if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, enrollmentRow(e)); err != nil {
			if code, _ := pqCode(err); code == codeUniqueViolation {
				return nil, core.NewConflictError("already enrolled in this course")
			}
			return nil, errors.Wrap(err, "inserting enrollment")
		}
		created = append(created, e)
	}
	return created, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments" + w.String() + " ORDER BY enrolled_at, id"
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, enrollment.Enrollment(row))
	}
	return enrollments, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	q := "UPDATE enrollments SET status = :status, dropped_at = :dropped_at WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, enrollmentRow(e))
	if err != nil {
		return enrollment.Enrollment{}, notFound(err, enrollment.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}
