package fee

import (
	"context"
	"time"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/course"
)

var ErrNotFound = core.NewNotFoundError("fee structure not found")

type (
	Repository interface {
		// QueryStructures returns schedule rows ordered by category then display order.
		QueryStructures(ctx context.Context, filter *QueryFilter) ([]Structure, error)
		GetStructure(ctx context.Context, id string) (Structure, error)
		CreateStructure(ctx context.Context, s Structure) (Structure, error)
		UpdateStructure(ctx context.Context, s Structure) (Structure, error)
		DeleteStructure(ctx context.Context, id string) error
	}

	// CourseFinder resolves course selections.
	CourseFinder interface {
		GetMany(ctx context.Context, ids []string) ([]course.Course, error)
	}

	Service struct {
		repo    Repository
		courses CourseFinder
	}
)

func NewService(repo Repository, courses CourseFinder) *Service {
	return &Service{repo: repo, courses: courses}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Structure, error) {
	return svc.repo.QueryStructures(ctx, filter)
}

// ActiveSchedule returns the rows the calculator prices with.
func (svc *Service) ActiveSchedule(ctx context.Context) ([]Structure, error) {
	return svc.repo.QueryStructures(ctx, &QueryFilter{ActiveOnly: true})
}

func (svc *Service) Get(ctx context.Context, id string) (Structure, error) {
	return svc.repo.GetStructure(ctx, id)
}

func (svc *Service) Create(ctx context.Context, ns NewStructure) (Structure, error) {
	now := time.Now().UTC()
	s := Structure{
		Category:     ns.Category,
		Name:         ns.Name,
		Amount:       ns.Amount,
		IsPerCredit:  ns.IsPerCredit,
		IsActive:     true,
		DisplayOrder: ns.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ns.IsActive != nil {
		s.IsActive = *ns.IsActive
	}
	// only tuition rows are charged per credit
	if s.Category != CategoryTuition {
		s.IsPerCredit = false
	}
	return svc.repo.CreateStructure(ctx, s)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStructure) (Structure, error) {
	s, err := svc.repo.GetStructure(ctx, id)
	if err != nil {
		return Structure{}, err
	}
	s = us.apply(s)
	if s.Category != CategoryTuition {
		s.IsPerCredit = false
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStructure(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStructure(ctx, id)
}

// Estimate prices a course selection against the current schedule without recording anything.
func (svc *Service) Estimate(ctx context.Context, courseIDs []string, includeBus bool) (Calculation, error) {
	courses := make([]course.Course, 0)
	if len(courseIDs) > 0 {
		var err error
		if courses, err = svc.courses.GetMany(ctx, courseIDs); err != nil {
			return Calculation{}, err
		}
	}
	return svc.Price(ctx, courses, includeBus)
}

// Price applies the active schedule to already resolved courses.
func (svc *Service) Price(ctx context.Context, courses []course.Course, includeBus bool) (Calculation, error) {
	schedule, err := svc.ActiveSchedule(ctx)
	if err != nil {
		return Calculation{}, err
	}
	return Calculate(schedule, courses, includeBus), nil
}
