package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	conf := *core.Conf
	conf.RollbarToken = ""
	logger := NewRollbarLogger(log.New(&buf, "", 0), &conf)

	usr := user.User{ID: "u1", Username: "jdoe"}
	logger.Warn("ledger audit: balance drift", map[string]interface{}{"student_id": "u1"}, usr, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "[WARN] ledger audit: balance drift")
	assert.Contains(t, out, "student_id:u1")
	assert.Contains(t, out, "user: jdoe (u1)")
	assert.Contains(t, out, "boom")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	usr := user.User{ID: "u1"}
	args := logger.prepare("msg", []interface{}{usr, "extra", user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", "extra"}, args)
}
