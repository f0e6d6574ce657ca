package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/notification"
	testutil "github.com/trezcool/bursary/tests"
)

var dec = testutil.Dec

func bPtr(b bool) *bool { return &b }

func TestService_Enroll(t *testing.T) {
	tests := []struct {
		name        string
		includeBus  *bool
		wantCharged string
		wantTotal   string
		wantBus     bool
	}{
		{name: "bus not chosen", wantCharged: "3500", wantTotal: "3700"},
		{name: "bus opted out", includeBus: bPtr(false), wantCharged: "3500", wantTotal: "3700"},
		{name: "bus opted in", includeBus: bPtr(true), wantCharged: "3500", wantTotal: "4000", wantBus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := testutil.NewEnv(t)
			env.SeedSchedule(t)
			cs101 := env.CreateCourse(t, "CS101", 3, "1500")
			cs102 := env.CreateCourse(t, "CS102", 4, "2000")
			student := env.CreateStudent(t, "jdoe")

			res, err := env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{
				CourseIDs:  []string{cs101.ID, cs102.ID},
				IncludeBus: tt.includeBus,
			})
			require.NoError(t, err)
			require.Len(t, res.Enrollments, 2)
			assert.Equal(t, "CS101", res.Enrollments[0].CourseCode)
			assert.True(t, res.AmountCharged.Equal(dec(tt.wantCharged)), res.AmountCharged.String())
			assert.True(t, res.DuesBalance.Equal(dec(tt.wantCharged)))
			assert.True(t, res.Fees.Total.Equal(dec(tt.wantTotal)), res.Fees.Total.String())
			assert.Equal(t, 7, res.Fees.TotalCredits)
			assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), res.PaymentDueDate, time.Minute)
			assert.True(t, env.Balance(t, student.ID).Equal(dec(tt.wantCharged)))

			usr, err := env.Users.GetByID(ctx, student.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBus, usr.HasBusService)

			notes, err := env.Notifications.Query(ctx, student.ID, false)
			require.NoError(t, err)
			require.Len(t, notes, 1)
			assert.Equal(t, notification.TypeEnrollment, notes[0].Type)
			assert.Contains(t, notes[0].Message, "CS101, CS102")
		})
	}
}

func TestService_Enroll_failures(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	cs101 := env.CreateCourse(t, "CS101", 3, "1500")
	cs102 := env.CreateCourse(t, "CS102", 4, "2000")
	student := env.CreateStudent(t, "jdoe")

	_, err := env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{CourseIDs: []string{cs101.ID}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		ids     []string
		student string
		check   func(error) bool
	}{
		{name: "already enrolled", ids: []string{cs102.ID, cs101.ID}, check: core.IsConflict},
		{name: "unknown course", ids: []string{cs102.ID, "nope"}, check: core.IsNotFound},
		{name: "unknown student", ids: []string{cs102.ID}, student: "ghost", check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := student
			if tt.student != "" {
				usr.ID = tt.student
			}
			_, err := env.Enrollments.Enroll(ctx, usr, enrollment.EnrollRequest{CourseIDs: tt.ids})
			require.Error(t, err)
			assert.True(t, tt.check(err), "%v", err)

			assert.True(t, env.Balance(t, student.ID).Equal(dec("1500")), "nothing of a failed enrollment is kept")
			details, err := env.Enrollments.Details(ctx, student.ID, "")
			require.NoError(t, err)
			assert.Len(t, details, 1)
		})
	}
}

func TestService_Drop(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	cs101 := env.CreateCourse(t, "CS101", 3, "1500")
	cs102 := env.CreateCourse(t, "CS102", 4, "2000")
	student := env.CreateStudent(t, "jdoe")

	_, err := env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{CourseIDs: []string{cs101.ID, cs102.ID}})
	require.NoError(t, err)

	// catalogue changes never touch fees already charged
	newFee := dec("9999")
	_, err = env.Courses.Update(ctx, cs101, course.UpdateCourse{TotalFee: &newFee})
	require.NoError(t, err)

	res, err := env.Enrollments.Drop(ctx, student, cs101.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDropped, res.Enrollment.Status)
	assert.NotNil(t, res.Enrollment.DroppedAt)
	assert.True(t, res.Refunded.Equal(dec("1500")), res.Refunded.String())
	assert.True(t, res.DuesBalance.Equal(dec("2000")))

	_, err = env.Enrollments.Drop(ctx, student, cs101.ID)
	assert.Equal(t, enrollment.ErrNotFound, err)

	// re-enrolling charges the current fee
	again, err := env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{CourseIDs: []string{cs101.ID}})
	require.NoError(t, err)
	assert.True(t, again.AmountCharged.Equal(dec("9999")))
	assert.True(t, env.Balance(t, student.ID).Equal(dec("11999")))

	rep, err := env.Auditor.Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Consistent, "%+v", rep.Drifts)
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	cs101 := env.CreateCourse(t, "CS101", 3, "1500")
	cs102 := env.CreateCourse(t, "CS102", 4, "2000")
	student := env.CreateStudent(t, "jdoe")

	_, err := env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{CourseIDs: []string{cs101.ID, cs102.ID}})
	require.NoError(t, err)
	_, err = env.Enrollments.Drop(ctx, student, cs102.ID)
	require.NoError(t, err)

	rep, err := env.Enrollments.Status(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, student.Username, rep.Username)
	assert.Len(t, rep.Enrollments, 2)
	assert.Equal(t, 1, rep.TotalEnrolledCourses)
	assert.True(t, rep.TotalCourseFees.Equal(dec("1500")))
	assert.True(t, rep.DuesBalance.Equal(dec("1500")))

	active, err := env.Enrollments.Details(ctx, student.ID, enrollment.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 3, active[0].CreditHours)
}

func TestService_FeeBreakdown(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	env.SeedSchedule(t)
	cs101 := env.CreateCourse(t, "CS101", 3, "1500")
	cs102 := env.CreateCourse(t, "CS102", 4, "2000")
	student := env.CreateStudent(t, "jdoe")

	empty, err := env.Enrollments.FeeBreakdown(ctx, student)
	require.NoError(t, err)
	assert.Nil(t, empty.PaymentDueDate)
	assert.True(t, empty.TuitionFees.IsZero())

	_, err = env.Enrollments.Enroll(ctx, student, enrollment.EnrollRequest{CourseIDs: []string{cs101.ID, cs102.ID}, IncludeBus: bPtr(true)})
	require.NoError(t, err)
	student, err = env.Users.GetByID(ctx, student.ID)
	require.NoError(t, err)

	b, err := env.Enrollments.FeeBreakdown(ctx, student)
	require.NoError(t, err)
	assert.True(t, b.TuitionFees.Equal(dec("3500")))
	assert.True(t, b.RegistrationFees.Equal(dec("200")))
	assert.True(t, b.BusFees.Equal(dec("300")))
	assert.True(t, b.Total.Equal(dec("4000")))
	assert.NotNil(t, b.PaymentDueDate)
	assert.Contains(t, b.Message, "Total: $4000.00")
}
