package fee

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/bursary/core/course"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	perCredit := Structure{Category: CategoryTuition, Name: "Tuition per credit", Amount: dec("500"), IsPerCredit: true, IsActive: true, DisplayOrder: 1}
	registration := Structure{Category: CategoryTuition, Name: "Registration", Amount: dec("200"), IsActive: true, DisplayOrder: 2}
	bus := Structure{Category: CategoryBus, Name: "Bus pass", Amount: dec("300"), IsActive: true}
	inactive := Structure{Category: CategoryTuition, Name: "Old lab fee", Amount: dec("999"), IsActive: false}
	admin := Structure{Category: CategoryAdmin, Name: "Transcript", Amount: dec("50"), IsActive: true}

	courses := []course.Course{
		{ID: "c1", Code: "CS101", Name: "Intro", CreditHours: 3},
		{ID: "c2", Code: "CS102", Name: "Data", CreditHours: 4},
	}

	tests := []struct {
		name             string
		schedule         []Structure
		courses          []course.Course
		includeBus       bool
		wantTuition      string
		wantRegistration string
		wantBus          string
		wantTotal        string
		wantCredits      int
		wantItems        int
	}{
		{
			name: "per-credit and fixed", schedule: []Structure{perCredit, registration}, courses: courses,
			wantTuition: "3500", wantRegistration: "200", wantBus: "0", wantTotal: "3700", wantCredits: 7, wantItems: 2,
		},
		{
			name: "bus not opted in", schedule: []Structure{perCredit, registration, bus}, courses: courses,
			wantTuition: "3500", wantRegistration: "200", wantBus: "0", wantTotal: "3700", wantCredits: 7, wantItems: 2,
		},
		{
			name: "bus opted in", schedule: []Structure{perCredit, registration, bus}, courses: courses, includeBus: true,
			wantTuition: "3500", wantRegistration: "200", wantBus: "300", wantTotal: "4000", wantCredits: 7, wantItems: 3,
		},
		{
			name: "inactive and non-enrollment rows ignored", schedule: []Structure{perCredit, inactive, admin}, courses: courses,
			wantTuition: "3500", wantRegistration: "0", wantBus: "0", wantTotal: "3500", wantCredits: 7, wantItems: 1,
		},
		{
			name: "no courses", schedule: []Structure{perCredit, registration}, courses: nil,
			wantTuition: "0", wantRegistration: "200", wantBus: "0", wantTotal: "200", wantCredits: 0, wantItems: 2,
		},
		{
			name: "empty schedule", schedule: nil, courses: courses, includeBus: true,
			wantTuition: "0", wantRegistration: "0", wantBus: "0", wantTotal: "0", wantCredits: 7, wantItems: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := Calculate(tt.schedule, tt.courses, tt.includeBus)

			assert.True(t, dec(tt.wantTuition).Equal(calc.TuitionFees), "tuition = %s", calc.TuitionFees)
			assert.True(t, dec(tt.wantRegistration).Equal(calc.RegistrationFees), "registration = %s", calc.RegistrationFees)
			assert.True(t, dec(tt.wantBus).Equal(calc.BusFees), "bus = %s", calc.BusFees)
			assert.True(t, dec(tt.wantTotal).Equal(calc.Total), "total = %s", calc.Total)
			assert.Equal(t, tt.wantCredits, calc.TotalCredits)
			assert.Len(t, calc.Breakdown, tt.wantItems)
			assert.Len(t, calc.Courses, len(tt.courses))

			// total is always the sum of its parts, and of the line items
			assert.True(t, calc.Total.Equal(calc.TuitionFees.Add(calc.RegistrationFees).Add(calc.BusFees)))
			sum := decimal.Zero
			for _, item := range calc.Breakdown {
				assert.True(t, item.Subtotal.Equal(item.Amount.Mul(decimal.NewFromInt(int64(item.Quantity)))), item.Name)
				sum = sum.Add(item.Subtotal)
				if !tt.includeBus {
					assert.NotEqual(t, CategoryBus, item.Category)
				}
			}
			assert.True(t, calc.Total.Equal(sum))
		})
	}
}

func TestCalculate_displayOrder(t *testing.T) {
	schedule := []Structure{
		{Category: CategoryTuition, Name: "Library", Amount: dec("20"), IsActive: true, DisplayOrder: 3},
		{Category: CategoryTuition, Name: "Tuition", Amount: dec("100"), IsPerCredit: true, IsActive: true, DisplayOrder: 1},
		{Category: CategoryTuition, Name: "Registration", Amount: dec("50"), IsActive: true, DisplayOrder: 2},
	}
	calc := Calculate(schedule, []course.Course{{ID: "c", CreditHours: 2}}, false)

	names := make([]string, 0, len(calc.Breakdown))
	for _, item := range calc.Breakdown {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"Tuition", "Registration", "Library"}, names)
	assert.Equal(t, 2, calc.Breakdown[0].Quantity)
}

func TestCalculation_Message(t *testing.T) {
	schedule := []Structure{
		{Category: CategoryTuition, Name: "Tuition", Amount: dec("500"), IsPerCredit: true, IsActive: true},
		{Category: CategoryTuition, Name: "Registration", Amount: dec("200"), IsActive: true, DisplayOrder: 1},
		{Category: CategoryBus, Name: "Bus pass", Amount: dec("300"), IsActive: true},
	}
	calc := Calculate(schedule, []course.Course{{ID: "c", CreditHours: 7}}, true)

	want := "Fee Breakdown:\n\n" +
		"Tuition & Fees:\n" +
		"  - Tuition (7 credits x $500.00): $3500.00\n" +
		"  - Registration: $200.00\n\n" +
		"Bus Fees:\n" +
		"  - Bus pass: $300.00\n\n" +
		"Subtotals:\n" +
		"  - Tuition: $3500.00\n" +
		"  - Registration & Other: $200.00\n" +
		"  - Bus: $300.00\n\n" +
		"Total: $4000.00"
	assert.Equal(t, want, calc.Message())
}

func TestDueDate(t *testing.T) {
	from := time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 14, 10, 0, 0, 0, time.UTC), DueDate(from, 30))
	assert.Equal(t, DueDate(from, DefaultPaymentDueDays), DueDate(from, 0))
}
