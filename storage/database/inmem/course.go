package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/bursary/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) QueryFaculties(ctx context.Context) ([]course.Faculty, error) {
	facs := make([]course.Faculty, 0)
	repo.db.read(ctx, func() {
		facs = append(facs, repo.db.faculties...)
	})
	sort.SliceStable(facs, func(i, j int) bool { return facs[i].Code < facs[j].Code })
	return facs, nil
}

func (repo *courseRepository) GetFaculty(ctx context.Context, id string) (fac course.Faculty, err error) {
	err = course.ErrFacultyNotFound
	repo.db.read(ctx, func() {
		for _, f := range repo.db.faculties {
			if f.ID == id {
				fac, err = f, nil
				return
			}
		}
	})
	return fac, err
}

func (repo *courseRepository) CreateFaculty(ctx context.Context, fac course.Faculty) (course.Faculty, error) {
	err := repo.db.write(ctx, func() error {
		for _, f := range repo.db.faculties {
			if strings.EqualFold(f.Code, fac.Code) {
				return course.ErrFacultyExists
			}
		}
		fac.ID = newID()
		repo.db.faculties = append(repo.db.faculties, fac)
		return nil
	})
	if err != nil {
		return course.Faculty{}, err
	}
	return fac, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	repo.db.read(ctx, func() {
		for _, c := range repo.db.courses {
			if matchCourse(c, filter) {
				courses = append(courses, c)
			}
		}
	})
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (crs course.Course, err error) {
	err = course.ErrNotFound
	repo.db.read(ctx, func() {
		if i := repo.db.courseIndex(id); i >= 0 {
			crs, err = repo.db.courses[i], nil
		}
	})
	return crs, err
}

func (repo *courseRepository) GetCourses(ctx context.Context, ids []string) ([]course.Course, error) {
	courses := make([]course.Course, 0, len(ids))
	repo.db.read(ctx, func() {
		for _, id := range ids {
			if i := repo.db.courseIndex(id); i >= 0 {
				courses = append(courses, repo.db.courses[i])
			}
		}
	})
	return courses, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	err := repo.db.write(ctx, func() error {
		if repo.db.courseCodeTaken(crs.Code, "") {
			return course.ErrCodeExists
		}
		crs.ID = newID()
		repo.db.courses = append(repo.db.courses, crs)
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	err := repo.db.write(ctx, func() error {
		i := repo.db.courseIndex(crs.ID)
		if i < 0 {
			return course.ErrNotFound
		}
		if repo.db.courseCodeTaken(crs.Code, crs.ID) {
			return course.ErrCodeExists
		}
		repo.db.courses[i] = crs
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return repo.db.write(ctx, func() error {
		i := repo.db.courseIndex(id)
		if i < 0 {
			return course.ErrNotFound
		}
		for _, e := range repo.db.enrollments {
			if e.CourseID == id {
				return course.ErrInUse
			}
		}
		repo.db.courses = append(repo.db.courses[:i:i], repo.db.courses[i+1:]...)
		return nil
	})
}

func (db *DB) courseIndex(id string) int {
	for i, c := range db.courses {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (db *DB) courseCodeTaken(code, exclID string) bool {
	for _, c := range db.courses {
		if c.ID != exclID && strings.EqualFold(c.Code, code) {
			return true
		}
	}
	return false
}

func matchCourse(c course.Course, filter *course.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.FacultyID != "" && c.FacultyID != filter.FacultyID {
		return false
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(c.Code), search) || strings.Contains(strings.ToLower(c.Name), search)
	}
	return true
}
