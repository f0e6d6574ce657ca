package course

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/bursary/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("course not found")
	ErrFacultyNotFound = core.NewNotFoundError("faculty not found")
	ErrCodeExists      = core.NewConflictError("course code already exists")
	ErrFacultyExists   = core.NewConflictError("faculty code already exists")
	ErrInUse           = core.NewConflictError("course has enrollments and cannot be deleted")

	errUnknownFaculty = errors.New("unknown faculty")
)

type (
	Repository interface {
		QueryFaculties(ctx context.Context) ([]Faculty, error)
		GetFaculty(ctx context.Context, id string) (Faculty, error)
		// CreateFaculty returns ErrFacultyExists on a duplicate code.
		CreateFaculty(ctx context.Context, fac Faculty) (Faculty, error)

		QueryCourses(ctx context.Context, filter *QueryFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// GetCourses returns the courses found among ids, in ids order; unknown ids are skipped.
		GetCourses(ctx context.Context, ids []string) ([]Course, error)
		// CreateCourse returns ErrCodeExists on a duplicate code.
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		// DeleteCourse returns ErrInUse when enrollments reference the course.
		DeleteCourse(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) QueryFaculties(ctx context.Context) ([]Faculty, error) {
	return svc.repo.QueryFaculties(ctx)
}

func (svc *Service) CreateFaculty(ctx context.Context, code, name, description string) (Faculty, error) {
	fac := Faculty{
		Code:        core.CleanString(code),
		Name:        core.CleanString(name),
		Description: core.CleanString(description),
		CreatedAt:   time.Now().UTC(),
	}
	if fac.Code == "" || fac.Name == "" {
		return Faculty{}, core.NewValidationError(errors.New("faculty code and name are required"))
	}
	return svc.repo.CreateFaculty(ctx, fac)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// GetMany fetches all courses of ids, failing with ErrNotFound when any is unknown.
func (svc *Service) GetMany(ctx context.Context, ids []string) ([]Course, error) {
	ids = dedup(ids)
	courses, err := svc.repo.GetCourses(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(courses) != len(ids) {
		return nil, ErrNotFound
	}
	return courses, nil
}

func (svc *Service) checkFaculty(ctx context.Context, facultyID string) error {
	if facultyID == "" {
		return nil
	}
	if _, err := svc.repo.GetFaculty(ctx, facultyID); err != nil {
		if err == ErrFacultyNotFound {
			return core.NewValidationError(errUnknownFaculty, core.FieldError{Field: "faculty_id", Error: errUnknownFaculty.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.checkFaculty(ctx, nc.FacultyID); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		CreditHours: nc.CreditHours,
		TotalFee:    nc.TotalFee,
		FacultyID:   nc.FacultyID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Update changes the catalogue entry only: fees already frozen on enrollments stay as they are.
func (svc *Service) Update(ctx context.Context, crs Course, uc UpdateCourse) (Course, error) {
	crs = uc.apply(crs)
	if uc.FacultyID != nil {
		if err := svc.checkFaculty(ctx, crs.FacultyID); err != nil {
			return Course{}, err
		}
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
