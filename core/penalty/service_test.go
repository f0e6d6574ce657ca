package penalty_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/penalty"
	testutil "github.com/trezcool/bursary/tests"
)

func TestService_Apply(t *testing.T) {
	tests := []struct {
		name     string
		np       penalty.NewPenalty
		wantErr  string
		wantDues string
	}{
		{name: "late fee", np: penalty.NewPenalty{Amount: testutil.Dec("150"), Type: "late_fee"}, wantDues: "1150"},
		{name: "with notes", np: penalty.NewPenalty{Amount: testutil.Dec("25.5"), Type: penalty.TypeOther, Notes: " library "}, wantDues: "1025.5"},
		{name: "zero amount", np: penalty.NewPenalty{Amount: testutil.Dec("0"), Type: penalty.TypeLateFee}, wantErr: "amount: amount must be a number greater than 0"},
		{name: "sub-cent amount", np: penalty.NewPenalty{Amount: testutil.Dec("10.005"), Type: penalty.TypeLateFee}, wantErr: "amount: invalid amount format"},
		{name: "amount too large", np: penalty.NewPenalty{Amount: testutil.Dec("10000000000"), Type: penalty.TypeLateFee}, wantErr: "amount: invalid amount format"},
		{name: "missing type", np: penalty.NewPenalty{Amount: testutil.Dec("10")}, wantErr: "type: type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := testutil.NewEnv(t)
			student := env.CreateStudent(t, "jdoe")
			admin := env.CreateAdmin(t, "finance")
			env.Charge(t, student.ID, "1000")

			tt.np.StudentID = student.ID
			tt.np.AppliedBy = admin.ID
			res, err := env.Penalties.Apply(ctx, tt.np)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, env.Balance(t, student.ID).Equal(testutil.Dec("1000")))
				return
			}
			require.NoError(t, err)
			assert.True(t, res.DuesBalance.Equal(testutil.Dec(tt.wantDues)), res.DuesBalance.String())
			assert.Equal(t, admin.ID, res.Penalty.AppliedBy)

			stmt, err := env.Ledger.Statement(ctx, student.ID)
			require.NoError(t, err)
			last := stmt.Entries[len(stmt.Entries)-1]
			assert.Equal(t, ledger.KindPenalty, last.Kind)
			assert.Equal(t, res.Penalty.ID, last.SourceID)

			notes, err := env.Notifications.Query(ctx, student.ID, true)
			require.NoError(t, err)
			require.Len(t, notes, 1)
			assert.Equal(t, notification.TypePenalty, notes[0].Type)
		})
	}
}

func TestService_Apply_unknownStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := env.Penalties.Apply(context.Background(), penalty.NewPenalty{StudentID: "nobody", Amount: testutil.Dec("1"), Type: penalty.TypeLateFee})
	assert.Equal(t, ledger.ErrAccountNotFound, err)

	list, err := env.Penalties.QueryForStudent(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_Apply_adminAccount(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin(t, "finance")

	_, err := env.Penalties.Apply(ctx, penalty.NewPenalty{StudentID: admin.ID, Amount: testutil.Dec("50"), Type: penalty.TypeLateFee, AppliedBy: admin.ID})
	assert.Equal(t, penalty.ErrNotStudent, err)
	assert.True(t, env.Balance(t, admin.ID).IsZero())

	list, err := env.Penalties.QueryForStudent(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_QueryForStudent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	other := env.CreateStudent(t, "other")

	for _, id := range []string{student.ID, other.ID, student.ID} {
		_, err := env.Penalties.Apply(ctx, penalty.NewPenalty{StudentID: id, Amount: testutil.Dec("150"), Type: penalty.TypeLateFee})
		require.NoError(t, err)
	}
	list, err := env.Penalties.QueryForStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, env.Balance(t, student.ID).Equal(testutil.Dec("300")))
}
