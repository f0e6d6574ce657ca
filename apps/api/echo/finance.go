package echoapi

import (
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/payment"
	"github.com/trezcool/bursary/core/penalty"
)

type financeApi struct {
	svc Services
}

func registerFinanceAPI(g *echo.Group, svc Services) {
	api := financeApi{svc: svc}

	fg := g.Group("/finance", requireAdmin)
	fg.GET("/fee-structures", api.queryFeeStructures)
	fg.POST("/fee-structures", api.createFeeStructure)
	fg.PUT("/fee-structures/:id", api.updateFeeStructure)
	fg.DELETE("/fee-structures/:id", api.destroyFeeStructure)

	fg.GET("/payments/pending", api.pendingPayments)
	fg.POST("/payments/:id/verify", api.verifyPayment)
	fg.POST("/payments/:id/reject", api.rejectPayment)
	fg.GET("/payments/:id/proof", api.paymentProof)

	fg.POST("/penalties", api.applyPenalty)
	fg.GET("/students/:id/penalties", api.studentPenalties)
	fg.GET("/students/:id/ledger", api.studentLedger)
	fg.GET("/reconciliation", api.reconcile)
}

type (
	RejectRequest struct {
		Reason string `json:"reason"`
	}

	SettleResponse struct {
		Msg           string          `json:"msg"`
		Payment       payment.Payment `json:"payment"`
		RemainingDues decimal.Decimal `json:"remaining_dues"`
	}
)

func (api *financeApi) queryFeeStructures(ctx echo.Context) error {
	filter := new(fee.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Category = core.CleanString(filter.Category, true /* lower */)
	rows, err := api.svc.Fees.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if rows == nil {
		rows = []fee.Structure{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *financeApi) createFeeStructure(ctx echo.Context) error {
	var data fee.NewStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStructure")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	s, err := api.svc.Fees.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *financeApi) updateFeeStructure(ctx echo.Context) error {
	var data fee.UpdateStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStructure")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	s, err := api.svc.Fees.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee structure")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *financeApi) destroyFeeStructure(ctx echo.Context) error {
	if err := api.svc.Fees.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) pendingPayments(ctx echo.Context) error {
	pending, err := api.svc.Payments.QueryPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending payments")
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *financeApi) verifyPayment(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Payments.Verify(ctx.Request().Context(), ctx.Param("id"), p.User)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, SettleResponse{Msg: "Payment verified", Payment: res.Payment, RemainingDues: res.RemainingDues})
}

func (api *financeApi) rejectPayment(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	var data RejectRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	res, err := api.svc.Payments.Reject(ctx.Request().Context(), ctx.Param("id"), p.User, data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting payment")
	}
	return ctx.JSON(http.StatusOK, SettleResponse{Msg: "Payment rejected", Payment: res.Payment, RemainingDues: res.RemainingDues})
}

func (api *financeApi) paymentProof(ctx echo.Context) error {
	pmt, rc, err := api.svc.Payments.OpenProof(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening payment proof")
	}
	defer func() { _ = rc.Close() }()

	ctype := mime.TypeByExtension(path.Ext(pmt.ProofDocument))
	if ctype == "" {
		ctype = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+path.Base(pmt.ProofDocument)+`"`)
	return ctx.Stream(http.StatusOK, ctype, rc)
}

func (api *financeApi) applyPenalty(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	var data penalty.NewPenalty
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPenalty")
	}
	data.AppliedBy = p.User.ID

	res, err := api.svc.Penalties.Apply(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "applying penalty")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *financeApi) studentPenalties(ctx echo.Context) error {
	c := ctx.Request().Context()
	if _, err := api.svc.Users.GetByID(c, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	penalties, err := api.svc.Penalties.QueryForStudent(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying penalties")
	}
	return ctx.JSON(http.StatusOK, penalties)
}

func (api *financeApi) studentLedger(ctx echo.Context) error {
	c := ctx.Request().Context()
	if _, err := api.svc.Users.GetByID(c, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	stmt, err := api.svc.Ledger.Statement(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building ledger statement")
	}
	return ctx.JSON(http.StatusOK, stmt)
}

func (api *financeApi) reconcile(ctx echo.Context) error {
	report, err := api.svc.Auditor.Run(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "running balance audit")
	}
	return ctx.JSON(http.StatusOK, report)
}
