package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/user"
)

var (
	ErrNotFound      = core.NewNotFoundError("payment not found")
	ErrProofNotFound = core.NewNotFoundError("payment has no proof document")
	ErrNotPending    = core.NewConflictError("payment is not pending verification")

	errAmountNotPositive = errors.New("amount must be a number greater than 0")
	errUnknownMethod     = errors.New("payment_method must be one of " + strings.Join(Methods, ", "))
	errReasonRequired    = errors.New("a rejection reason is required")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		// QueryPayments returns matching payments, newest first.
		QueryPayments(ctx context.Context, filter QueryFilter) ([]Payment, error)
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
		Files         core.FileStorage
		Logger        core.Logger
	}

	Service struct {
		Deps
		nowFunc func() time.Time
	}
)

func NewService(deps Deps) *Service {
	return &Service{Deps: deps, nowFunc: time.Now}
}

// ExceedsDuesError rejects immediate payments larger than what the student owes.
type ExceedsDuesError struct {
	Amount decimal.Decimal
	Dues   decimal.Decimal
}

func (e ExceedsDuesError) Error() string {
	return fmt.Sprintf("Payment amount (%s) exceeds outstanding dues (%s)", core.FormatMoney(e.Amount), core.FormatMoney(e.Dues))
}

func (np *NewPayment) validate() error {
	if !np.Amount.IsPositive() {
		return core.NewValidationError(errAmountNotPositive, core.FieldError{Field: "amount", Error: errAmountNotPositive.Error()})
	}
	if !core.ValidAmount(np.Amount) {
		return core.NewValidationError(core.ErrInvalidAmount)
	}
	np.Method = strings.ToUpper(core.CleanString(np.Method))
	if np.Method == "" {
		np.Method = MethodManual
	}
	known := false
	for _, m := range Methods {
		known = known || m == np.Method
	}
	if !known {
		return core.NewValidationError(errUnknownMethod, core.FieldError{Field: "payment_method", Error: errUnknownMethod.Error()})
	}
	np.ReferenceNumber = core.CleanString(np.ReferenceNumber)
	np.Notes = core.CleanString(np.Notes)
	return validateProof(np.Proof)
}

// Record records a student payment.
// Bank transfers are accepted whatever the balance and stay PENDING without touching the ledger until verified.
// Other methods are RECEIVED immediately, must not exceed the dues balance and post a PAYMENT entry.
// The payment, its ledger entry and the notification commit together or not at all.
func (svc *Service) Record(ctx context.Context, np NewPayment) (RecordResult, error) {
	if err := np.validate(); err != nil {
		return RecordResult{}, err
	}

	now := svc.nowFunc().UTC()
	pmt := Payment{
		StudentID:       np.StudentID,
		Amount:          np.Amount,
		Method:          np.Method,
		Status:          StatusReceived,
		ReferenceNumber: np.ReferenceNumber,
		Notes:           np.Notes,
		RecordedBy:      np.RecordedBy,
		PaidAt:          now,
	}
	if np.Method == MethodBankTransfer {
		pmt.Status = StatusPending
	}

	var res RecordResult
	var note notification.Notification
	var proofPath string
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.Ledger.Lock(ctx, np.StudentID); err != nil {
			return err
		}
		dues, err := svc.Ledger.Balance(ctx, np.StudentID)
		if err != nil {
			return pkgerrors.Wrap(err, "getting balance")
		}
		if pmt.Status == StatusReceived && pmt.Amount.GreaterThan(dues) {
			e := ExceedsDuesError{Amount: pmt.Amount, Dues: dues}
			return core.NewValidationError(e)
		}

		if np.Proof != nil {
			proofPath = ProofPath(now, np.StudentID, np.Proof.Filename)
			err = svc.Files.Save(ctx, proofPath, np.Proof.Content)
			if err == core.ErrFileExists {
				// same file name uploaded within the same second
				proofPath = ProofPath(now, np.StudentID, uuid.New().String()[:8]+"_"+np.Proof.Filename)
				err = svc.Files.Save(ctx, proofPath, np.Proof.Content)
			}
			if err != nil {
				proofPath = ""
				return pkgerrors.Wrap(err, "saving proof document")
			}
			pmt.ProofDocument = proofPath
		}

		if pmt, err = svc.Repo.CreatePayment(ctx, pmt); err != nil {
			return pkgerrors.Wrap(err, "creating payment")
		}

		var msg, typ string
		res.RemainingDues = dues
		if pmt.Status == StatusReceived {
			entry := ledger.NewEntry(pmt.StudentID, ledger.KindPayment, pmt.Amount, pmt.ID, "Payment via "+pmt.Method)
			if res.RemainingDues, err = svc.Ledger.Post(ctx, pmt.StudentID, entry); err != nil {
				return pkgerrors.Wrap(err, "posting payment")
			}
			typ = notification.TypePaymentReceived
			msg = fmt.Sprintf("Payment of %s received. Remaining dues: %s", core.FormatMoney(pmt.Amount), core.FormatMoney(res.RemainingDues))
		} else {
			typ = notification.TypePaymentSubmitted
			msg = fmt.Sprintf("Payment of %s via %s submitted for verification.", core.FormatMoney(pmt.Amount), pmt.Method)
		}
		note, err = svc.Notifications.Record(ctx, pmt.StudentID, typ, msg)
		return err
	})
	if err != nil {
		svc.discardProof(ctx, proofPath)
		return RecordResult{}, err
	}

	res.Payment = pmt
	svc.Notifications.Dispatch(ctx, note)
	return res, nil
}

// discardProof removes a proof document saved by a unit of work that did not commit.
func (svc *Service) discardProof(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := svc.Files.Delete(ctx, path); err != nil {
		svc.Logger.Warn("discarding proof document", pkgerrors.Wrap(err, path))
	}
}

// Verify marks a PENDING payment RECEIVED and credits it to the ledger.
func (svc *Service) Verify(ctx context.Context, id string, verifier user.User) (RecordResult, error) {
	return svc.settle(ctx, id, func(ctx context.Context, pmt Payment) (Payment, notification.Notification, decimal.Decimal, error) {
		now := svc.nowFunc().UTC()
		pmt.Status = StatusReceived
		pmt.VerifiedBy = verifier.ID
		pmt.VerifiedAt = &now
		pmt, err := svc.Repo.UpdatePayment(ctx, pmt)
		if err != nil {
			return Payment{}, notification.Notification{}, decimal.Zero, pkgerrors.Wrap(err, "updating payment")
		}

		entry := ledger.NewEntry(pmt.StudentID, ledger.KindPayment, pmt.Amount, pmt.ID, "Verified payment via "+pmt.Method)
		dues, err := svc.Ledger.Post(ctx, pmt.StudentID, entry)
		if err != nil {
			return Payment{}, notification.Notification{}, decimal.Zero, pkgerrors.Wrap(err, "posting payment")
		}

		msg := fmt.Sprintf("Your payment of %s via %s was verified. Remaining dues: %s",
			core.FormatMoney(pmt.Amount), pmt.Method, core.FormatMoney(dues))
		note, err := svc.Notifications.Record(ctx, pmt.StudentID, notification.TypePaymentVerified, msg)
		return pmt, note, dues, err
	})
}

// Reject marks a PENDING payment REJECTED; the ledger is left untouched.
func (svc *Service) Reject(ctx context.Context, id string, verifier user.User, reason string) (RecordResult, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		return RecordResult{}, core.NewValidationError(errReasonRequired, core.FieldError{Field: "reason", Error: errReasonRequired.Error()})
	}

	return svc.settle(ctx, id, func(ctx context.Context, pmt Payment) (Payment, notification.Notification, decimal.Decimal, error) {
		now := svc.nowFunc().UTC()
		pmt.Status = StatusRejected
		pmt.VerifiedBy = verifier.ID
		pmt.VerifiedAt = &now
		pmt.RejectionReason = reason
		pmt, err := svc.Repo.UpdatePayment(ctx, pmt)
		if err != nil {
			return Payment{}, notification.Notification{}, decimal.Zero, pkgerrors.Wrap(err, "updating payment")
		}

		dues, err := svc.Ledger.Balance(ctx, pmt.StudentID)
		if err != nil {
			return Payment{}, notification.Notification{}, decimal.Zero, pkgerrors.Wrap(err, "getting balance")
		}
		msg := fmt.Sprintf("Your payment of %s via %s was rejected: %s", core.FormatMoney(pmt.Amount), pmt.Method, reason)
		note, err := svc.Notifications.Record(ctx, pmt.StudentID, notification.TypePaymentRejected, msg)
		return pmt, note, dues, err
	})
}

type settleFunc func(ctx context.Context, pmt Payment) (Payment, notification.Notification, decimal.Decimal, error)

// settle runs fn on a PENDING payment with its student account locked.
func (svc *Service) settle(ctx context.Context, id string, fn settleFunc) (RecordResult, error) {
	var res RecordResult
	var note notification.Notification

	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		pmt, err := svc.Repo.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if err = svc.Ledger.Lock(ctx, pmt.StudentID); err != nil {
			return err
		}
		// re-read under the lock: a concurrent settlement may have won
		if pmt, err = svc.Repo.GetPayment(ctx, id); err != nil {
			return err
		}
		if !pmt.IsPending() {
			return ErrNotPending
		}
		res.Payment, note, res.RemainingDues, err = fn(ctx, pmt)
		return err
	})
	if err != nil {
		return RecordResult{}, err
	}

	svc.Notifications.Dispatch(ctx, note)
	return res, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Payment, error) {
	return svc.Repo.GetPayment(ctx, id)
}

// QueryPending lists the payments awaiting verification, newest first.
func (svc *Service) QueryPending(ctx context.Context) ([]PendingPayment, error) {
	payments, err := svc.Repo.QueryPayments(ctx, QueryFilter{Status: StatusPending})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying pending payments")
	}

	students := make(map[string]user.User)
	pending := make([]PendingPayment, 0, len(payments))
	for _, p := range payments {
		usr, ok := students[p.StudentID]
		if !ok {
			if usr, err = svc.Users.GetByID(ctx, p.StudentID); err != nil && !core.IsNotFound(err) {
				return nil, pkgerrors.Wrap(err, "getting student")
			}
			students[p.StudentID] = usr
		}
		pending = append(pending, PendingPayment{
			Payment:         p,
			StudentName:     usr.Name,
			StudentUsername: usr.Username,
			StudentEmail:    usr.Email,
		})
	}
	return pending, nil
}

// History lists the payments of a student, newest first.
func (svc *Service) History(ctx context.Context, student user.User) (History, error) {
	payments, err := svc.Repo.QueryPayments(ctx, QueryFilter{StudentID: student.ID})
	if err != nil {
		return History{}, pkgerrors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []Payment{}
	}
	h := History{UserID: student.ID, Username: student.Username, TotalPaid: decimal.Zero, Payments: payments}
	for _, p := range payments {
		if p.Status == StatusReceived {
			h.TotalPaid = h.TotalPaid.Add(p.Amount)
		}
	}
	return h, nil
}

// OpenProof opens the proof document of a payment.
func (svc *Service) OpenProof(ctx context.Context, id string) (Payment, io.ReadCloser, error) {
	pmt, err := svc.Repo.GetPayment(ctx, id)
	if err != nil {
		return Payment{}, nil, err
	}
	if pmt.ProofDocument == "" {
		return Payment{}, nil, ErrProofNotFound
	}
	rc, err := svc.Files.Open(ctx, pmt.ProofDocument)
	if err != nil {
		return Payment{}, nil, pkgerrors.Wrap(err, "opening proof document")
	}
	return pmt, rc, nil
}
