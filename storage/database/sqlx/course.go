package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/storage/database"
)

const courseColumns = "id, code, name, description, credit_hours, total_fee, faculty_id, created_at, updated_at"

// facultyRow converts to and from course.Faculty.
type facultyRow struct {
	ID          string    `db:"id"`
	Code        string    `db:"code"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type courseRow struct {
	ID          string          `db:"id"`
	Code        string          `db:"code"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	CreditHours int             `db:"credit_hours"`
	TotalFee    decimal.Decimal `db:"total_fee"`
	FacultyID   null.String     `db:"faculty_id"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func toCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:          c.ID,
		Code:        c.Code,
		Name:        c.Name,
		Description: c.Description,
		CreditHours: c.CreditHours,
		TotalFee:    c.TotalFee,
		FacultyID:   nullString(c.FacultyID),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		CreditHours: r.CreditHours,
		TotalFee:    r.TotalFee,
		FacultyID:   r.FacultyID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	repo
}

func NewCourseRepository(db *database.DB) course.Repository {
	return &courseRepository{repo{db: db}}
}

func (repo *courseRepository) QueryFaculties(ctx context.Context) ([]course.Faculty, error) {
	var rows []facultyRow
	q := "SELECT id, code, name, description, created_at FROM faculties ORDER BY code"
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying faculties")
	}
	facs := make([]course.Faculty, 0, len(rows))
	for _, row := range rows {
		facs = append(facs, course.Faculty(row))
	}
	return facs, nil
}

func (repo *courseRepository) GetFaculty(ctx context.Context, id string) (course.Faculty, error) {
	var row facultyRow
	q := "SELECT id, code, name, description, created_at FROM faculties WHERE id::text = $1"
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, id); err != nil {
		return course.Faculty{}, notFound(err, course.ErrFacultyNotFound)
	}
	return course.Faculty(row), nil
}

func (repo *courseRepository) CreateFaculty(ctx context.Context, fac course.Faculty) (course.Faculty, error) {
	fac.ID = newID()
	q := "INSERT INTO faculties (id, code, name, description, created_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := repo.ext(ctx).ExecContext(ctx, q, fac.ID, fac.Code, fac.Name, fac.Description, fac.CreatedAt); err != nil {
		if code, _ := pqCode(err); code == codeUniqueViolation {
			return course.Faculty{}, course.ErrFacultyExists
		}
		return course.Faculty{}, errors.Wrap(err, "inserting faculty")
	}
	return fac, nil
}

func (repo *courseRepository) query(ctx context.Context, q string, args ...interface{}) ([]course.Course, error) {
	var rows []courseRow
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	var w where
	if filter != nil {
		if filter.FacultyID != "" {
			w.add("faculty_id::text = ?", filter.FacultyID)
		}
		if filter.Search != "" {
			w.add("(code ILIKE ? OR name ILIKE ?)", "%"+filter.Search+"%")
		}
	}
	return repo.query(ctx, "SELECT "+courseColumns+" FROM courses"+w.String()+" ORDER BY code", w.args...)
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := "SELECT " + courseColumns + " FROM courses WHERE id::text = $1"
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, id); err != nil {
		return course.Course{}, notFound(err, course.ErrNotFound)
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) GetCourses(ctx context.Context, ids []string) ([]course.Course, error) {
	q := "SELECT " + courseColumns + " FROM courses WHERE id::text = ANY($1) ORDER BY array_position($1, id::text)"
	return repo.query(ctx, q, pq.StringArray(ids))
}

func mapCourseErr(err error) error {
	switch code, _ := pqCode(err); code {
	case codeUniqueViolation:
		return course.ErrCodeExists
	case codeForeignKeyViolation:
		return course.ErrInUse
	}
	return err
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = newID()
	q := `INSERT INTO courses (` + courseColumns + `)
		VALUES (:id, :code, :name, :description, :credit_hours, :total_fee, :faculty_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toCourseRow(crs)); err != nil {
		return course.Course{}, mapCourseErr(err)
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET code = :code, name = :name, description = :description, credit_hours = :credit_hours,
		total_fee = :total_fee, faculty_id = :faculty_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toCourseRow(crs))
	if err != nil {
		return course.Course{}, notFound(mapCourseErr(err), course.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.ext(ctx).ExecContext(ctx, "DELETE FROM courses WHERE id::text = $1", id)
	if err != nil {
		return mapCourseErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}
