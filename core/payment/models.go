package payment

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Methods
const (
	MethodOnline       = "ONLINE"
	MethodManual       = "MANUAL"
	MethodBankTransfer = "BANK_TRANSFER"
)

// Statuses
const (
	StatusReceived = "RECEIVED"
	StatusPending  = "PENDING"  // awaiting verification
	StatusRejected = "REJECTED" // terminal
)

var Methods = []string{MethodOnline, MethodManual, MethodBankTransfer}

type Payment struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"payment_method"`
	Status          string          `json:"status"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ProofDocument   string          `json:"proof_document,omitempty"`
	RecordedBy      string          `json:"recorded_by,omitempty"`
	VerifiedBy      string          `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	PaidAt          time.Time       `json:"payment_date"`
}

func (p Payment) IsPending() bool { return p.Status == StatusPending }

// Proof is an uploaded proof-of-payment document.
type Proof struct {
	Filename string
	Content  io.Reader
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	StudentID       string
	Amount          decimal.Decimal
	Method          string
	ReferenceNumber string
	Notes           string
	Proof           *Proof
	RecordedBy      string
}

type QueryFilter struct {
	StudentID string
	Status    string
}

type (
	RecordResult struct {
		Payment       Payment
		RemainingDues decimal.Decimal
	}

	// PendingPayment is a pending Payment with the identity of its student.
	PendingPayment struct {
		Payment
		StudentName     string `json:"student_name"`
		StudentUsername string `json:"student_username"`
		StudentEmail    string `json:"student_email"`
	}

	History struct {
		UserID    string          `json:"user_id"`
		Username  string          `json:"username"`
		TotalPaid decimal.Decimal `json:"total_paid"` // RECEIVED payments only
		Payments  []Payment       `json:"payments"`
	}
)
