package echoapi

import (
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
)

const (
	orderingParam = "ordering"
	proofField    = "proof_document"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// PayRequest is the body of a student payment, sent as JSON or as a multipart form.
// Amount accepts a JSON number or a numeric string.
type PayRequest struct {
	Amount          flexAmount `json:"amount" form:"amount"`
	PaymentMethod   string     `json:"payment_method" form:"payment_method"`
	ReferenceNumber string     `json:"reference_number" form:"reference_number"`
	Notes           string     `json:"notes" form:"notes"`
}

type flexAmount struct {
	value decimal.Decimal
	err   error
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	a.value, a.err = core.ParseAmount(s)
	return nil
}

func (a *flexAmount) UnmarshalParam(s string) error {
	if s != "" {
		a.value, a.err = core.ParseAmount(s)
	}
	return nil
}

var errNoPaymentData = core.NewValidationError(errors.New("no payment data provided"))

// bindPayment reads a PayRequest and, for multipart requests, the optional proof document.
// A missing amount binds as zero.
func bindPayment(ctx echo.Context) (PayRequest, *proofUpload, error) {
	var req PayRequest
	if ctx.Request().ContentLength == 0 {
		return req, nil, errNoPaymentData
	}
	if err := ctx.Bind(&req); err != nil {
		return req, nil, errors.Wrap(err, "binding to PayRequest")
	}
	if req.Amount.err != nil {
		return req, nil, req.Amount.err
	}

	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return req, nil, nil
	}
	fh, err := ctx.FormFile(proofField)
	if err != nil {
		return req, nil, nil // no file sent
	}
	f, err := fh.Open()
	if err != nil {
		return req, nil, errors.Wrap(err, "opening proof document")
	}
	return req, &proofUpload{name: fh.Filename, ReadCloser: f}, nil
}

type proofUpload struct {
	io.ReadCloser
	name string
}

func parseBool(s string, defaultVal bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}
