package course

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
)

type Faculty struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Course struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreditHours int             `json:"credit_hours"`
	TotalFee    decimal.Decimal `json:"total_fee"`
	FacultyID   string          `json:"faculty_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code        string          `json:"code" validate:"required,max=32"`
	Name        string          `json:"name" validate:"required,max=128"`
	Description string          `json:"description"`
	CreditHours int             `json:"credit_hours" validate:"gte=0"`
	TotalFee    decimal.Decimal `json:"total_fee" validate:"gte=0,money"`
	FacultyID   string          `json:"faculty_id"`
}

func (nc *NewCourse) Validate() error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.FacultyID = core.CleanString(nc.FacultyID)
	return core.Validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left untouched.
type UpdateCourse struct {
	Name        *string          `json:"name" validate:"omitempty,max=128"`
	Description *string          `json:"description"`
	CreditHours *int             `json:"credit_hours" validate:"omitempty,gte=0"`
	TotalFee    *decimal.Decimal `json:"total_fee" validate:"omitempty,gte=0,money"`
	FacultyID   *string          `json:"faculty_id"`
}

func (uc *UpdateCourse) Validate() error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		if name == "" {
			uc.Name = nil
		} else {
			uc.Name = &name
		}
	}
	return core.Validate.Struct(uc)
}

func (uc UpdateCourse) apply(c Course) Course {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.CreditHours != nil {
		c.CreditHours = *uc.CreditHours
	}
	if uc.TotalFee != nil {
		c.TotalFee = *uc.TotalFee
	}
	if uc.FacultyID != nil {
		c.FacultyID = core.CleanString(*uc.FacultyID)
	}
	return c
}

type QueryFilter struct {
	FacultyID string `query:"faculty_id"`
	Search    string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.FacultyID = core.CleanString(qf.FacultyID)
	qf.Search = core.CleanString(qf.Search)
}

// TotalCredits sums the credit hours of courses.
func TotalCredits(courses []Course) int {
	var total int
	for _, c := range courses {
		total += c.CreditHours
	}
	return total
}
