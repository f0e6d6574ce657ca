package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/bursary/apps/api/echo"
	"github.com/trezcool/bursary/core/user"
	testutil "github.com/trezcool/bursary/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt", Code: "AUTH_REQUIRED"}

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newApp(t *testing.T) (Server, *testutil.Env) {
	env := testutil.NewEnv(t)
	app := NewServer(&Options{
		DisableReqLogs: true,
		Logger:         env.Logger,
		Services: Services{
			Users:         env.Users,
			Courses:       env.Courses,
			Fees:          env.Fees,
			Ledger:        env.Ledger,
			Enrollments:   env.Enrollments,
			Payments:      env.Payments,
			Penalties:     env.Penalties,
			Notifications: env.Notifications,
			Auditor:       env.Auditor,
		},
	})
	return app, env
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func serve(app Server, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	var req *http.Request
	var rec *httptest.ResponseRecorder
	if tt.body != nil {
		req, rec = newAuthRequest(method, tt.path, tt.token, tt.body)
	} else {
		req, rec = newAuthRequest(method, tt.path, tt.token)
	}
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err)
	return token
}

func getExpiredToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	claims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	token, err := GenerateToken(claims)
	require.NoError(t, err)
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func jsonUnmarshalInto(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}
