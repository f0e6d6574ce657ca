package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core/notification"
	testutil "github.com/trezcool/bursary/tests"
)

func TestService_RecordAndDispatch(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")

	n, err := env.Notifications.Record(ctx, student.ID, notification.TypePenalty, "A late fee was applied.")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.IsRead)

	env.Notifications.Dispatch(ctx, n, notification.Notification{StudentID: "unknown", Type: notification.TypePenalty, Message: "lost"})

	sent := env.Mail.Sent()
	require.Len(t, sent, 1, "unknown recipients are skipped")
	assert.Equal(t, student.Email, sent[0].To[0].Address)
	assert.Equal(t, "Penalty applied", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "A late fee was applied.")
	assert.Contains(t, sent[0].HTMLContent, "A late fee was applied.")
}

func TestService_QueryAndMarkRead(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	student := env.CreateStudent(t, "jdoe")
	other := env.CreateStudent(t, "other")

	first, err := env.Notifications.Record(ctx, student.ID, notification.TypeEnrollment, "first")
	require.NoError(t, err)
	_, err = env.Notifications.Record(ctx, student.ID, notification.TypePaymentReceived, "second")
	require.NoError(t, err)

	tests := []struct {
		name      string
		studentID string
		id        string
		wantErr   error
	}{
		{name: "not found", studentID: student.ID, id: "lol", wantErr: notification.ErrNotFound},
		{name: "someone else's", studentID: other.ID, id: first.ID, wantErr: notification.ErrNotFound},
		{name: "own", studentID: student.ID, id: first.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Notifications.MarkRead(ctx, tt.studentID, tt.id)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	all, err := env.Notifications.Query(ctx, student.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unread, err := env.Notifications.Query(ctx, student.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Message)

	none, err := env.Notifications.Query(ctx, other.ID, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}
