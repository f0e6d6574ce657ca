package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
)

// Categories
const (
	CategoryTuition = "tuition"
	CategoryBus     = "bus"
	CategoryAdmin   = "admin"
	CategoryOther   = "other"
)

var Categories = []string{CategoryTuition, CategoryBus, CategoryAdmin, CategoryOther}

// Structure is one row of the fee schedule.
type Structure struct {
	ID           string          `json:"id"`
	Category     string          `json:"category"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	IsPerCredit  bool            `json:"is_per_credit"`
	IsActive     bool            `json:"is_active"`
	DisplayOrder int             `json:"display_order"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type NewStructure struct {
	Category     string          `json:"category" validate:"required,oneof=tuition bus admin other"`
	Name         string          `json:"name" validate:"required,max=128"`
	Amount       decimal.Decimal `json:"amount" validate:"gte=0,money"`
	IsPerCredit  bool            `json:"is_per_credit"`
	IsActive     *bool           `json:"is_active"`
	DisplayOrder int             `json:"display_order"`
}

func (ns *NewStructure) Validate() error {
	ns.Category = core.CleanString(ns.Category, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	return core.Validate.Struct(ns)
}

// UpdateStructure defines what may change on a schedule row; nil fields are left untouched.
type UpdateStructure struct {
	Category     *string          `json:"category" validate:"omitempty,oneof=tuition bus admin other"`
	Name         *string          `json:"name" validate:"omitempty,max=128"`
	Amount       *decimal.Decimal `json:"amount" validate:"omitempty,gte=0,money"`
	IsPerCredit  *bool            `json:"is_per_credit"`
	IsActive     *bool            `json:"is_active"`
	DisplayOrder *int             `json:"display_order"`
}

func (us *UpdateStructure) Validate() error {
	if us.Category != nil {
		c := core.CleanString(*us.Category, true /* lower */)
		us.Category = &c
	}
	if us.Name != nil {
		n := core.CleanString(*us.Name)
		if n == "" {
			us.Name = nil
		} else {
			us.Name = &n
		}
	}
	return core.Validate.Struct(us)
}

func (us UpdateStructure) apply(s Structure) Structure {
	if us.Category != nil {
		s.Category = *us.Category
	}
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Amount != nil {
		s.Amount = *us.Amount
	}
	if us.IsPerCredit != nil {
		s.IsPerCredit = *us.IsPerCredit
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	if us.DisplayOrder != nil {
		s.DisplayOrder = *us.DisplayOrder
	}
	return s
}

type QueryFilter struct {
	Category   string `query:"category"`
	ActiveOnly bool   `query:"active"`
}
