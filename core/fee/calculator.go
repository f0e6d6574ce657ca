package fee

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/course"
)

const DefaultPaymentDueDays = 30

type (
	// LineItem is one row of a fee breakdown; Subtotal == Amount × Quantity.
	LineItem struct {
		Category    string          `json:"category"`
		Name        string          `json:"name"`
		Amount      decimal.Decimal `json:"amount"`
		Quantity    int             `json:"quantity"`
		IsPerCredit bool            `json:"is_per_credit"`
		Subtotal    decimal.Decimal `json:"subtotal"`
	}

	CourseSummary struct {
		ID          string `json:"id"`
		Code        string `json:"code"`
		Name        string `json:"name"`
		CreditHours int    `json:"credit_hours"`
	}

	Calculation struct {
		TuitionFees      decimal.Decimal `json:"tuition_fees"`      // per-credit tuition rows × credits
		RegistrationFees decimal.Decimal `json:"registration_fees"` // fixed tuition rows
		BusFees          decimal.Decimal `json:"bus_fees"`
		Total            decimal.Decimal `json:"total"`
		TotalCredits     int             `json:"total_credits"`
		Breakdown        []LineItem      `json:"breakdown"`
		Courses          []CourseSummary `json:"courses"`
	}
)

// Calculate prices a course selection against the fee schedule.
// Only active rows count. Per-credit tuition rows are multiplied by the total credit hours of courses, fixed tuition
// rows are charged once, and bus rows are charged once each when includeBus is set. Rows of other categories are
// not part of the enrollment price.
func Calculate(schedule []Structure, courses []course.Course, includeBus bool) Calculation {
	calc := Calculation{
		TuitionFees:      decimal.Zero,
		RegistrationFees: decimal.Zero,
		BusFees:          decimal.Zero,
		TotalCredits:     course.TotalCredits(courses),
		Breakdown:        make([]LineItem, 0),
		Courses:          make([]CourseSummary, 0, len(courses)),
	}
	for _, c := range courses {
		calc.Courses = append(calc.Courses, CourseSummary{ID: c.ID, Code: c.Code, Name: c.Name, CreditHours: c.CreditHours})
	}
	credits := decimal.NewFromInt(int64(calc.TotalCredits))

	for _, row := range activeRows(schedule, CategoryTuition) {
		if row.IsPerCredit {
			subtotal := row.Amount.Mul(credits)
			calc.TuitionFees = calc.TuitionFees.Add(subtotal)
			calc.Breakdown = append(calc.Breakdown, LineItem{
				Category:    CategoryTuition,
				Name:        row.Name,
				Amount:      row.Amount,
				Quantity:    calc.TotalCredits,
				IsPerCredit: true,
				Subtotal:    subtotal,
			})
			continue
		}
		calc.RegistrationFees = calc.RegistrationFees.Add(row.Amount)
		calc.Breakdown = append(calc.Breakdown, fixedItem(row))
	}

	if includeBus {
		for _, row := range activeRows(schedule, CategoryBus) {
			calc.BusFees = calc.BusFees.Add(row.Amount)
			calc.Breakdown = append(calc.Breakdown, fixedItem(row))
		}
	}

	calc.Total = calc.TuitionFees.Add(calc.RegistrationFees).Add(calc.BusFees)
	return calc
}

func fixedItem(row Structure) LineItem {
	return LineItem{
		Category: row.Category,
		Name:     row.Name,
		Amount:   row.Amount,
		Quantity: 1,
		Subtotal: row.Amount,
	}
}

// activeRows returns the active rows of category, ordered by display order.
func activeRows(schedule []Structure, category string) []Structure {
	rows := make([]Structure, 0, len(schedule))
	for _, s := range schedule {
		if s.IsActive && s.Category == category {
			rows = append(rows, s)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DisplayOrder < rows[j].DisplayOrder })
	return rows
}

// DueDate is the payment deadline of charges made at from.
func DueDate(from time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultPaymentDueDays
	}
	return from.AddDate(0, 0, days)
}

// Message renders the calculation as a human-readable breakdown.
func (calc Calculation) Message() string {
	var tuition, bus []LineItem
	for _, item := range calc.Breakdown {
		switch item.Category {
		case CategoryTuition:
			tuition = append(tuition, item)
		case CategoryBus:
			bus = append(bus, item)
		}
	}

	lines := []string{"Fee Breakdown:"}
	if len(tuition) > 0 {
		lines = append(lines, "", "Tuition & Fees:")
		for _, item := range tuition {
			if item.IsPerCredit {
				lines = append(lines, fmt.Sprintf("  - %s (%d credits x %s): %s",
					item.Name, item.Quantity, core.FormatMoney(item.Amount), core.FormatMoney(item.Subtotal)))
			} else {
				lines = append(lines, fmt.Sprintf("  - %s: %s", item.Name, core.FormatMoney(item.Subtotal)))
			}
		}
	}
	if len(bus) > 0 {
		lines = append(lines, "", "Bus Fees:")
		for _, item := range bus {
			lines = append(lines, fmt.Sprintf("  - %s: %s", item.Name, core.FormatMoney(item.Subtotal)))
		}
	}

	lines = append(lines, "", "Subtotals:")
	if calc.TuitionFees.IsPositive() {
		lines = append(lines, "  - Tuition: "+core.FormatMoney(calc.TuitionFees))
	}
	if calc.RegistrationFees.IsPositive() {
		lines = append(lines, "  - Registration & Other: "+core.FormatMoney(calc.RegistrationFees))
	}
	if calc.BusFees.IsPositive() {
		lines = append(lines, "  - Bus: "+core.FormatMoney(calc.BusFees))
	}
	lines = append(lines, "", "Total: "+core.FormatMoney(calc.Total))
	return strings.Join(lines, "\n")
}
