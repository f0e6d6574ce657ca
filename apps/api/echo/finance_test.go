package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/payment"
	testutil "github.com/trezcool/bursary/tests"
)

func Test_financeApi_roles(t *testing.T) {
	app, env := newApp(t)
	studentToken := getToken(t, env.CreateStudent(t, "stud"))

	denied := marshallObj(t, httpErr{
		Error: "access denied, finance portal access requires admin privileges",
		Code:  "INSUFFICIENT_PRIVILEGES",
	})
	runTests(t, app, []httpTest{
		{name: "Auth required", path: "/api/finance/payments/pending", wantCode: http.StatusUnauthorized},
		{name: "student: pending", path: "/api/finance/payments/pending", token: studentToken, wantCode: http.StatusForbidden, wantData: denied},
		{name: "student: reconciliation", path: "/api/finance/reconciliation", token: studentToken, wantCode: http.StatusForbidden, wantData: denied},
		{name: "student: fee structures", method: http.MethodPost, path: "/api/finance/fee-structures", token: studentToken,
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: denied},
	})
}

func Test_financeApi_malformedAuthHeader(t *testing.T) {
	app, _ := newApp(t)
	req, rec := newAuthRequest(http.MethodGet, "/api/finance/payments/pending", "")
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
}

func Test_financeApi_feeStructures(t *testing.T) {
	app, env := newApp(t)
	token := getToken(t, env.CreateAdmin(t, "fin"))

	rec := serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/fee-structures", token: token,
		body: marshallObj(t, map[string]interface{}{"category": "TUITION", "name": "Per credit", "amount": 500, "is_per_credit": true}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, fee.CategoryTuition, created["category"])
	assert.Equal(t, true, created["is_active"])
	id := created["id"].(string)

	rec = serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/fee-structures", token: token,
		body: marshallObj(t, map[string]interface{}{"category": "bus", "name": "Bus", "amount": 300, "is_per_credit": true}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["is_per_credit"])

	rec = serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/fee-structures", token: token,
		body: marshallObj(t, map[string]interface{}{"category": "parking", "name": "Parking", "amount": 10}),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(app, httpTest{
		method: http.MethodPut, path: "/api/finance/fee-structures/" + id, token: token,
		body: marshallObj(t, map[string]interface{}{"amount": 550, "is_active": false}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 550.0, decode(t, rec)["amount"])

	rows, err := env.Fees.ActiveSchedule(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rec = serve(app, httpTest{method: http.MethodDelete, path: "/api/finance/fee-structures/" + id, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(app, httpTest{method: http.MethodPut, path: "/api/finance/fee-structures/" + id, token: token, body: []byte(`{}`)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_financeApi_settlePayments(t *testing.T) {
	app, env := newApp(t)
	ctx := context.Background()
	student := env.CreateStudent(t, "stud")
	token := getToken(t, env.CreateAdmin(t, "fin"))
	env.Charge(t, student.ID, "3000")

	submit := func(amount string) payment.Payment {
		res, err := env.Payments.Record(ctx, payment.NewPayment{
			StudentID: student.ID, Amount: testutil.Dec(amount), Method: payment.MethodBankTransfer,
		})
		require.NoError(t, err)
		return res.Payment
	}
	first := submit("1000")
	second := submit("500")

	rec := serve(app, httpTest{path: "/api/finance/payments/pending", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []payment.PendingPayment
	require.NoError(t, jsonUnmarshalInto(rec, &pending))
	require.Len(t, pending, 2)
	assert.Equal(t, student.Username, pending[0].StudentUsername)

	rec = serve(app, httpTest{method: http.MethodPost, path: "/api/finance/payments/" + first.ID + "/verify", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, 2000.0, data["remaining_dues"])
	assert.Equal(t, payment.StatusReceived, data["payment"].(map[string]interface{})["status"])

	rec = serve(app, httpTest{method: http.MethodPost, path: "/api/finance/payments/" + first.ID + "/verify", token: token})
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: "payment is not pending verification"})}, rec)

	rec = serve(app, httpTest{method: http.MethodPost, path: "/api/finance/payments/" + second.ID + "/reject", token: token, body: []byte(`{}`)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/payments/" + second.ID + "/reject", token: token,
		body: marshallObj(t, RejectBody{Reason: "transfer not found"}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = decode(t, rec)
	assert.Equal(t, 2000.0, data["remaining_dues"])
	assert.Equal(t, "transfer not found", data["payment"].(map[string]interface{})["rejection_reason"])

	rec = serve(app, httpTest{method: http.MethodPost, path: "/api/finance/payments/unknown/verify", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(app, httpTest{path: "/api/finance/payments/" + first.ID + "/proof", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(app, httpTest{path: "/api/finance/payments/pending", token: token})
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
}

func Test_financeApi_penaltiesAndLedger(t *testing.T) {
	app, env := newApp(t)
	student := env.CreateStudent(t, "stud")
	admin := env.CreateAdmin(t, "fin")
	token := getToken(t, admin)

	rec := serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/penalties", token: token,
		body: marshallObj(t, map[string]interface{}{"student_id": admin.ID, "amount": 150, "type": "late_fee"}),
	})
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, map[string]string{"student_id": "penalties can only be applied to student accounts"}),
	}, rec)

	rec = serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/penalties", token: token,
		body: marshallObj(t, map[string]interface{}{"student_id": student.ID, "amount": 150, "type": "late_fee", "notes": "Paid after deadline"}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, 150.0, data["dues_balance"])

	rec = serve(app, httpTest{
		method: http.MethodPost, path: "/api/finance/penalties", token: token,
		body: marshallObj(t, map[string]interface{}{"student_id": student.ID, "amount": -1, "type": "LATE_FEE"}),
	})
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marshallObj(t, map[string]string{"amount": "amount must be a number greater than 0"}),
	}, rec)

	rec = serve(app, httpTest{path: "/api/finance/students/" + student.ID + "/penalties", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var penalties []map[string]interface{}
	require.NoError(t, jsonUnmarshalInto(rec, &penalties))
	require.Len(t, penalties, 1)
	assert.Equal(t, "LATE_FEE", penalties[0]["type"])

	rec = serve(app, httpTest{path: "/api/finance/students/" + student.ID + "/ledger", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)
	assert.Equal(t, 150.0, data["balance"])
	assert.Len(t, data["entries"], 1)

	rec = serve(app, httpTest{path: "/api/finance/students/nobody/ledger", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_financeApi_reconcile(t *testing.T) {
	app, env := newApp(t)
	student := env.CreateStudent(t, "stud")
	token := getToken(t, env.CreateAdmin(t, "fin"))
	crs := env.CreateCourse(t, "CS101", 3, "1500")

	_, err := env.Enrollments.Enroll(context.Background(), student, enrollment.EnrollRequest{CourseIDs: []string{crs.ID}})
	require.NoError(t, err)

	rec := serve(app, httpTest{path: "/api/finance/reconciliation", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)
	assert.Equal(t, true, data["consistent"])
	assert.Equal(t, 1.0, data["students_checked"])

	// a charge with no source row drifts the ledger
	env.Charge(t, student.ID, "99")
	rec = serve(app, httpTest{path: "/api/finance/reconciliation", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)
	assert.Equal(t, false, data["consistent"])
	drifts := data["drifts"].([]interface{})
	require.Len(t, drifts, 1)
	assert.Equal(t, 99.0, drifts[0].(map[string]interface{})["difference"])
}

type RejectBody struct {
	Reason string `json:"reason"`
}
