// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursary/storage/database"
)

// postgres error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

type repo struct {
	db *database.DB
}

func (r repo) ext(ctx context.Context) sqlx.ExtContext {
	return r.db.Ext(ctx)
}

func newID() string {
	return uuid.New().String()
}

func pqCode(err error) (code, constraint string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}

// notFound maps missing rows and malformed ids to nf.
func notFound(err, nf error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows {
		return nf
	}
	if code, _ := pqCode(err); code == codeInvalidText {
		return nf
	}
	return err
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// where accumulates AND-ed conditions; every "?" of a condition binds its single arg.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
