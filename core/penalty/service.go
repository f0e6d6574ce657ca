package penalty

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/user"
)

// Types
const (
	TypeLateFee = "LATE_FEE"
	TypeOther   = "OTHER"
)

var (
	ErrNotStudent = core.NewValidationError(errNotStudent, core.FieldError{Field: "student_id", Error: errNotStudent.Error()})

	errNotStudent        = errors.New("penalties can only be applied to student accounts")
	errAmountNotPositive = errors.New("amount must be a number greater than 0")
	errTypeRequired      = errors.New("type is required")
)

type Penalty struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Notes     string          `json:"notes,omitempty"`
	AppliedBy string          `json:"applied_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPenalty contains information needed to apply a Penalty.
type NewPenalty struct {
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Notes     string          `json:"notes"`
	AppliedBy string          `json:"-"`
}

func (np *NewPenalty) validate() error {
	np.Type = strings.ToUpper(core.CleanString(np.Type))
	np.Notes = core.CleanString(np.Notes)

	var flds []core.FieldError
	switch {
	case !np.Amount.IsPositive():
		flds = append(flds, core.FieldError{Field: "amount", Error: errAmountNotPositive.Error()})
	case !core.ValidAmount(np.Amount):
		flds = append(flds, core.FieldError{Field: "amount", Error: core.ErrInvalidAmount.Error()})
	}
	if np.Type == "" {
		flds = append(flds, core.FieldError{Field: "type", Error: errTypeRequired.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type (
	Repository interface {
		CreatePenalty(ctx context.Context, p Penalty) (Penalty, error)
		// QueryPenalties returns the penalties of a student, newest first.
		QueryPenalties(ctx context.Context, studentID string) ([]Penalty, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Deps struct {
		Tx            core.Transactor
		Repo          Repository
		Users         UserFinder
		Ledger        *ledger.Service
		Notifications *notification.Service
	}

	Service struct {
		Deps
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

// ApplyResult is an applied Penalty with the resulting dues balance.
type ApplyResult struct {
	Penalty     Penalty         `json:"penalty"`
	DuesBalance decimal.Decimal `json:"dues_balance"`
}

// Apply charges a penalty to a student.
func (svc *Service) Apply(ctx context.Context, np NewPenalty) (ApplyResult, error) {
	if err := np.validate(); err != nil {
		return ApplyResult{}, err
	}

	var res ApplyResult
	var note notification.Notification
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.Ledger.Lock(ctx, np.StudentID); err != nil {
			return err
		}
		usr, err := svc.Users.GetByID(ctx, np.StudentID)
		if err != nil {
			return pkgerrors.Wrap(err, "getting student")
		}
		if usr.IsAdmin() {
			return ErrNotStudent
		}

		p, err := svc.Repo.CreatePenalty(ctx, Penalty{
			StudentID: np.StudentID,
			Amount:    np.Amount,
			Type:      np.Type,
			Notes:     np.Notes,
			AppliedBy: np.AppliedBy,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(err, "creating penalty")
		}
		res.Penalty = p

		entry := ledger.NewEntry(p.StudentID, ledger.KindPenalty, p.Amount, p.ID, "Penalty: "+p.Type)
		if res.DuesBalance, err = svc.Ledger.Post(ctx, p.StudentID, entry); err != nil {
			return pkgerrors.Wrap(err, "posting penalty")
		}

		msg := fmt.Sprintf("A %s penalty of %s was applied to your account. Dues balance: %s",
			p.Type, core.FormatMoney(p.Amount), core.FormatMoney(res.DuesBalance))
		if p.Notes != "" {
			msg += ". " + p.Notes
		}
		note, err = svc.Notifications.Record(ctx, p.StudentID, notification.TypePenalty, msg)
		return err
	})
	if err != nil {
		return ApplyResult{}, err
	}

	svc.Notifications.Dispatch(ctx, note)
	return res, nil
}

func (svc *Service) QueryForStudent(ctx context.Context, studentID string) ([]Penalty, error) {
	penalties, err := svc.Repo.QueryPenalties(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if penalties == nil {
		penalties = []Penalty{}
	}
	return penalties, nil
}
