package inmemdb

import (
	"context"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollments(ctx context.Context, enrollments ...enrollment.Enrollment) ([]enrollment.Enrollment, error) {
	created := make([]enrollment.Enrollment, 0, len(enrollments))
	err := repo.db.write(ctx, func() error {
		for _, e := range enrollments {
			for _, cur := range repo.db.enrollments {
				if cur.IsActive() && e.IsActive() && cur.StudentID == e.StudentID && cur.CourseID == e.CourseID {
					return core.NewConflictError("already enrolled in this course")
				}
			}
			e.ID = newID()
			repo.db.enrollments = append(repo.db.enrollments, e)
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter) ([]enrollment.Enrollment, error) {
	enrollments := make([]enrollment.Enrollment, 0)
	repo.db.read(ctx, func() {
		for _, e := range repo.db.enrollments {
			if (filter.StudentID == "" || e.StudentID == filter.StudentID) &&
				(filter.CourseID == "" || e.CourseID == filter.CourseID) &&
				(filter.Status == "" || e.Status == filter.Status) {
				enrollments = append(enrollments, e)
			}
		}
	})
	return enrollments, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	err := repo.db.write(ctx, func() error {
		for i, cur := range repo.db.enrollments {
			if cur.ID == e.ID {
				repo.db.enrollments[i] = e
				return nil
			}
		}
		return enrollment.ErrNotFound
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}
