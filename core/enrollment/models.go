package enrollment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/fee"
)

// Statuses
const (
	StatusActive  = "ACTIVE"
	StatusDropped = "DROPPED" // terminal
)

// Enrollment links a student to a course.
// CourseFee is the course fee at enrollment time; later catalogue changes do not affect it.
type Enrollment struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id"`
	CourseID   string          `json:"course_id"`
	CourseFee  decimal.Decimal `json:"course_fee"`
	Status     string          `json:"status"`
	EnrolledAt time.Time       `json:"enrollment_date"`
	DroppedAt  *time.Time      `json:"dropped_at,omitempty"`
}

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

// Detail is an Enrollment with its course.
type Detail struct {
	Enrollment
	CourseCode  string `json:"course_code"`
	CourseName  string `json:"course_name"`
	CreditHours int    `json:"credits"`
}

type QueryFilter struct {
	StudentID string
	CourseID  string
	Status    string
}

type EnrollRequest struct {
	CourseIDs  []string `json:"course_ids" validate:"required,min=1,dive,required"`
	IncludeBus *bool    `json:"include_bus"`
}

func (er *EnrollRequest) Validate() error {
	for i := range er.CourseIDs {
		er.CourseIDs[i] = core.CleanString(er.CourseIDs[i])
	}
	return core.Validate.Struct(er)
}

type (
	EnrollResult struct {
		Enrollments    []Detail        `json:"enrollments"`
		AmountCharged  decimal.Decimal `json:"amount_charged"`
		DuesBalance    decimal.Decimal `json:"dues_balance"`
		PaymentDueDate time.Time       `json:"payment_due_date"`
		Fees           fee.Calculation `json:"fee_calculation"`
	}

	DropResult struct {
		Enrollment  Detail          `json:"enrollment"`
		Refunded    decimal.Decimal `json:"amount_reversed"`
		DuesBalance decimal.Decimal `json:"dues_balance"`
	}

	StatusReport struct {
		UserID               string          `json:"user_id"`
		Username             string          `json:"username"`
		Email                string          `json:"email"`
		DuesBalance          decimal.Decimal `json:"dues_balance"`
		Enrollments          []Detail        `json:"enrollments"`
		TotalEnrolledCourses int             `json:"total_enrolled_courses"`
		TotalCourseFees      decimal.Decimal `json:"total_course_fees"`
	}

	Breakdown struct {
		fee.Calculation
		Message        string     `json:"message"`
		PaymentDueDate *time.Time `json:"payment_due_date,omitempty"`
	}
)
