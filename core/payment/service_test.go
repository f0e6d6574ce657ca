package payment_test

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/payment"
	inmemdb "github.com/trezcool/bursary/storage/database/inmem"
	"github.com/trezcool/bursary/storage/files"
	testutil "github.com/trezcool/bursary/tests"
)

var dec = testutil.Dec

func TestService_Record(t *testing.T) {
	tests := []struct {
		name       string
		np         payment.NewPayment
		wantErr    string
		wantStatus string
		wantDues   string
		wantNote   string
	}{
		{
			name:       "online",
			np:         payment.NewPayment{Amount: dec("1000"), Method: payment.MethodOnline},
			wantStatus: payment.StatusReceived,
			wantDues:   "4000",
			wantNote:   notification.TypePaymentReceived,
		},
		{
			name:       "method defaults to manual",
			np:         payment.NewPayment{Amount: dec("5000")},
			wantStatus: payment.StatusReceived,
			wantDues:   "0",
			wantNote:   notification.TypePaymentReceived,
		},
		{
			name:    "exceeds dues",
			np:      payment.NewPayment{Amount: dec("6000"), Method: payment.MethodManual},
			wantErr: "Payment amount ($6000.00) exceeds outstanding dues ($5000.00)",
		},
		{
			name:       "bank transfer may exceed dues",
			np:         payment.NewPayment{Amount: dec("6000"), Method: "bank_transfer"},
			wantStatus: payment.StatusPending,
			wantDues:   "5000",
			wantNote:   notification.TypePaymentSubmitted,
		},
		{
			name:    "zero amount",
			np:      payment.NewPayment{Amount: dec("0"), Method: payment.MethodOnline},
			wantErr: "amount must be a number greater than 0",
		},
		{
			name:    "negative amount",
			np:      payment.NewPayment{Amount: dec("-10"), Method: payment.MethodOnline},
			wantErr: "amount must be a number greater than 0",
		},
		{
			name:    "sub-cent amount",
			np:      payment.NewPayment{Amount: dec("0.001"), Method: payment.MethodOnline},
			wantErr: "invalid amount format",
		},
		{
			name:    "amount too large for a bank transfer",
			np:      payment.NewPayment{Amount: dec("123456789012345"), Method: payment.MethodBankTransfer},
			wantErr: "invalid amount format",
		},
		{
			name:    "unknown method",
			np:      payment.NewPayment{Amount: dec("10"), Method: "CHEQUE"},
			wantErr: "payment_method must be one of ONLINE, MANUAL, BANK_TRANSFER",
		},
		{
			name: "bad proof type",
			np: payment.NewPayment{Amount: dec("10"), Method: payment.MethodBankTransfer,
				Proof: &payment.Proof{Filename: "receipt.exe", Content: strings.NewReader("MZ")}},
			wantErr: "invalid file type, allowed: pdf, png, jpg, jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := testutil.NewEnv(t)
			student := env.CreateStudent(t, "jdoe")
			env.Charge(t, student.ID, "5000")

			tt.np.StudentID = student.ID
			res, err := env.Payments.Record(ctx, tt.np)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				var verr *core.ValidationError
				assert.True(t, errors.As(err, &verr), "validation error expected")
				assert.True(t, env.Balance(t, student.ID).Equal(dec("5000")), "balance must be unchanged")

				hist, err := env.Payments.History(ctx, student)
				require.NoError(t, err)
				assert.Empty(t, hist.Payments)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Payment.Status)
			assert.NotEmpty(t, res.Payment.ID)
			assert.True(t, res.RemainingDues.Equal(dec(tt.wantDues)), res.RemainingDues.String())
			assert.True(t, env.Balance(t, student.ID).Equal(dec(tt.wantDues)))

			notes, err := env.Notifications.Query(ctx, student.ID, false)
			require.NoError(t, err)
			require.Len(t, notes, 1)
			assert.Equal(t, tt.wantNote, notes[0].Type)
			assert.Len(t, env.Mail.Sent(), 1)
		})
	}
}

func TestService_Record_concurrent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	env.Charge(t, student.ID, "5000")

	const attempts = 20
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("1000"), Method: payment.MethodOnline})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, "Payment amount ($1000.00) exceeds outstanding dues ($0.00)", err.Error())
	}
	assert.Equal(t, 5, succeeded)
	assert.True(t, env.Balance(t, student.ID).IsZero(), env.Balance(t, student.ID).String())

	hist, err := env.Payments.History(ctx, student)
	require.NoError(t, err)
	assert.Len(t, hist.Payments, 5)
	assert.True(t, hist.TotalPaid.Equal(dec("5000")))
}

func TestService_Record_messages(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	env.Charge(t, student.ID, "5000")

	_, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("1000"), Method: payment.MethodOnline})
	require.NoError(t, err)
	_, err = env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("250.5"), Method: payment.MethodBankTransfer})
	require.NoError(t, err)

	notes, err := env.Notifications.Query(ctx, student.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Payment of $250.50 via BANK_TRANSFER submitted for verification.", notes[0].Message)
	assert.Equal(t, "Payment of $1000.00 received. Remaining dues: $4000.00", notes[1].Message)
}

func TestService_Record_unknownStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := env.Payments.Record(context.Background(), payment.NewPayment{StudentID: "nobody", Amount: dec("10")})
	assert.Equal(t, ledger.ErrAccountNotFound, err)
}

func TestService_Record_proof(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")

	res, err := env.Payments.Record(ctx, payment.NewPayment{
		StudentID: student.ID,
		Amount:    dec("700"),
		Method:    payment.MethodBankTransfer,
		Proof:     &payment.Proof{Filename: "../My Receipt.PDF", Content: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Payment.ProofDocument, "uploads/payments/"))
	assert.True(t, strings.HasSuffix(res.Payment.ProofDocument, "_"+student.ID+"_My_Receipt.PDF"), res.Payment.ProofDocument)

	_, rc, err := env.Payments.OpenProof(ctx, res.Payment.ID)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4", string(data))

	online, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("1"), Method: payment.MethodBankTransfer})
	require.NoError(t, err)
	_, _, err = env.Payments.OpenProof(ctx, online.Payment.ID)
	assert.Equal(t, payment.ErrProofNotFound, err)
}

// takenStorage reports the first path it is asked to save as already taken.
type takenStorage struct {
	core.FileStorage
	taken string
}

func (s *takenStorage) Save(ctx context.Context, path string, r io.Reader) error {
	if s.taken == "" {
		s.taken = path
		return core.ErrFileExists
	}
	return s.FileStorage.Save(ctx, path, r)
}

func TestService_Record_proofNameTaken(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")

	store := &takenStorage{FileStorage: files.NewLocalStorage(t.TempDir(), 0)}
	svc := payment.NewService(payment.Deps{
		Tx:            env.DB,
		Repo:          inmemdb.NewPaymentRepository(env.DB),
		Users:         env.Users,
		Ledger:        env.Ledger,
		Notifications: env.Notifications,
		Files:         store,
		Logger:        env.Logger,
	})

	res, err := svc.Record(ctx, payment.NewPayment{
		StudentID: student.ID,
		Amount:    dec("700"),
		Method:    payment.MethodBankTransfer,
		Proof:     &payment.Proof{Filename: "receipt.pdf", Content: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.NotEqual(t, store.taken, res.Payment.ProofDocument)
	assert.True(t, strings.HasSuffix(res.Payment.ProofDocument, "_receipt.pdf"), res.Payment.ProofDocument)

	rc, err := store.Open(ctx, res.Payment.ProofDocument)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.4", string(data))
}

type failingRepo struct {
	payment.Repository
}

func (failingRepo) CreatePayment(context.Context, payment.Payment) (payment.Payment, error) {
	return payment.Payment{}, errors.New("disk full")
}

func TestService_Record_rollback(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	env.Charge(t, student.ID, "5000")

	root := t.TempDir()
	svc := payment.NewService(payment.Deps{
		Tx:            env.DB,
		Repo:          failingRepo{},
		Users:         env.Users,
		Ledger:        env.Ledger,
		Notifications: env.Notifications,
		Files:         files.NewLocalStorage(root, 0),
		Logger:        env.Logger,
	})

	_, err := svc.Record(ctx, payment.NewPayment{
		StudentID: student.ID,
		Amount:    dec("100"),
		Method:    payment.MethodBankTransfer,
		Proof:     &payment.Proof{Filename: "receipt.png", Content: strings.NewReader("png")},
	})
	require.Error(t, err)
	assert.True(t, env.Balance(t, student.ID).Equal(dec("5000")))

	entries, err := ioutil.ReadDir(filepath.Join(root, "uploads", "payments"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
		assert.Empty(t, entries, "proof of a failed payment must be removed")
	}
	notes, err := env.Notifications.Query(ctx, student.ID, false)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	admin := env.CreateAdmin(t, "finance")
	env.Charge(t, student.ID, "5000")

	pending, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("2000"), Method: payment.MethodBankTransfer})
	require.NoError(t, err)
	assert.True(t, env.Balance(t, student.ID).Equal(dec("5000")), "pending payments leave the balance untouched")

	list, err := env.Payments.QueryPending(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, student.Name, list[0].StudentName)
	assert.Equal(t, student.Email, list[0].StudentEmail)

	res, err := env.Payments.Verify(ctx, pending.Payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusReceived, res.Payment.Status)
	assert.Equal(t, admin.ID, res.Payment.VerifiedBy)
	assert.NotNil(t, res.Payment.VerifiedAt)
	assert.True(t, res.RemainingDues.Equal(dec("3000")))
	assert.True(t, env.Balance(t, student.ID).Equal(dec("3000")))

	_, err = env.Payments.Verify(ctx, pending.Payment.ID, admin)
	assert.Equal(t, payment.ErrNotPending, err)
	assert.True(t, env.Balance(t, student.ID).Equal(dec("3000")), "a payment is credited once")

	list, err = env.Payments.QueryPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = env.Payments.Verify(ctx, "unknown", admin)
	assert.Equal(t, payment.ErrNotFound, err)

	notes, err := env.Notifications.Query(ctx, student.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, notification.TypePaymentVerified, notes[0].Type)
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	admin := env.CreateAdmin(t, "finance")
	env.Charge(t, student.ID, "5000")

	pending, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("2000"), Method: payment.MethodBankTransfer})
	require.NoError(t, err)

	_, err = env.Payments.Reject(ctx, pending.Payment.ID, admin, "  ")
	assert.Error(t, err)
	assert.Equal(t, "a rejection reason is required", err.Error())

	res, err := env.Payments.Reject(ctx, pending.Payment.ID, admin, "no matching transfer")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, res.Payment.Status)
	assert.Equal(t, "no matching transfer", res.Payment.RejectionReason)
	assert.True(t, env.Balance(t, student.ID).Equal(dec("5000")))

	_, err = env.Payments.Verify(ctx, pending.Payment.ID, admin)
	assert.True(t, core.IsConflict(err), "rejected payments cannot be verified")
	_, err = env.Payments.Reject(ctx, pending.Payment.ID, admin, "again")
	assert.True(t, core.IsConflict(err))
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	admin := env.CreateAdmin(t, "finance")
	env.Charge(t, student.ID, "5000")

	for _, np := range []payment.NewPayment{
		{StudentID: student.ID, Amount: dec("1000"), Method: payment.MethodOnline},
		{StudentID: student.ID, Amount: dec("500"), Method: payment.MethodManual},
		{StudentID: student.ID, Amount: dec("300"), Method: payment.MethodBankTransfer},
	} {
		_, err := env.Payments.Record(ctx, np)
		require.NoError(t, err)
	}
	rejected, err := env.Payments.Record(ctx, payment.NewPayment{StudentID: student.ID, Amount: dec("50"), Method: payment.MethodBankTransfer})
	require.NoError(t, err)
	_, err = env.Payments.Reject(ctx, rejected.Payment.ID, admin, "bounced")
	require.NoError(t, err)

	hist, err := env.Payments.History(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, student.ID, hist.UserID)
	assert.Len(t, hist.Payments, 4)
	assert.Equal(t, rejected.Payment.ID, hist.Payments[0].ID, "newest first")
	assert.True(t, hist.TotalPaid.Equal(dec("1500")), hist.TotalPaid.String())

	other := env.CreateStudent(t, "other")
	hist, err = env.Payments.History(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, hist.Payments)
	assert.Empty(t, hist.Payments)
	assert.True(t, hist.TotalPaid.IsZero())
}
