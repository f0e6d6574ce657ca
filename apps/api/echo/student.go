package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/payment"
)

type studentApi struct {
	svc Services
}

func registerStudentAPI(g *echo.Group, svc Services) {
	api := studentApi{svc: svc}

	sg := g.Group("/students", requireStudent)
	sg.POST("/enroll", api.enroll)
	sg.DELETE("/enroll/:course_id", api.drop)
	sg.POST("/estimate-fees", api.estimateFees)
	sg.GET("/fee-breakdown", api.feeBreakdown)
	sg.POST("/pay", api.pay)
	sg.GET("/status", api.status)
	sg.GET("/payments", api.payments)
	sg.GET("/notifications", api.notifications)
	sg.POST("/notifications/:id/read", api.markNotificationRead)
}

type (
	EstimateRequest struct {
		CourseIDs  []string `json:"course_ids"`
		IncludeBus bool     `json:"include_bus"`
	}

	EstimateResponse struct {
		fee.Calculation
		Message string `json:"message"`
	}

	PayResponse struct {
		Msg           string          `json:"msg"`
		PaymentID     string          `json:"payment_id"`
		Amount        decimal.Decimal `json:"amount"`
		Status        string          `json:"status"`
		RemainingDues decimal.Decimal `json:"remaining_dues"`
		PaymentDate   time.Time       `json:"payment_date"`
		ProofDocument string          `json:"proof_document,omitempty"`
	}
)

func (api *studentApi) enroll(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	var data enrollment.EnrollRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.Enrollments.Enroll(ctx.Request().Context(), p.User, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *studentApi) drop(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Enrollments.Drop(ctx.Request().Context(), p.User, ctx.Param("course_id"))
	if err != nil {
		return errors.Wrap(err, "dropping enrollment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *studentApi) estimateFees(ctx echo.Context) error {
	var data EstimateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EstimateRequest")
	}
	for i := range data.CourseIDs {
		data.CourseIDs[i] = core.CleanString(data.CourseIDs[i])
	}

	calc, err := api.svc.Fees.Estimate(ctx.Request().Context(), data.CourseIDs, data.IncludeBus)
	if err != nil {
		return errors.Wrap(err, "estimating fees")
	}
	return ctx.JSON(http.StatusOK, EstimateResponse{Calculation: calc, Message: calc.Message()})
}

func (api *studentApi) feeBreakdown(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	bd, err := api.svc.Enrollments.FeeBreakdown(ctx.Request().Context(), p.User)
	if err != nil {
		return errors.Wrap(err, "computing fee breakdown")
	}
	return ctx.JSON(http.StatusOK, bd)
}

func (api *studentApi) pay(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	data, upload, err := bindPayment(ctx)
	if err != nil {
		return err
	}

	np := payment.NewPayment{
		StudentID:       p.User.ID,
		Amount:          data.Amount.value,
		Method:          data.PaymentMethod,
		ReferenceNumber: data.ReferenceNumber,
		Notes:           data.Notes,
		RecordedBy:      p.User.ID,
	}
	if upload != nil {
		defer func() { _ = upload.Close() }()
		np.Proof = &payment.Proof{Filename: upload.name, Content: upload}
	}

	res, err := api.svc.Payments.Record(ctx.Request().Context(), np)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}

	msg := "Payment recorded successfully"
	if res.Payment.IsPending() {
		msg = "Payment submitted for verification"
	}
	return ctx.JSON(http.StatusCreated, PayResponse{
		Msg:           msg,
		PaymentID:     res.Payment.ID,
		Amount:        res.Payment.Amount,
		Status:        res.Payment.Status,
		RemainingDues: res.RemainingDues,
		PaymentDate:   res.Payment.PaidAt,
		ProofDocument: res.Payment.ProofDocument,
	})
}

func (api *studentApi) status(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.Enrollments.Status(ctx.Request().Context(), p.User)
	if err != nil {
		return errors.Wrap(err, "building status report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *studentApi) payments(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	history, err := api.svc.Payments.History(ctx.Request().Context(), p.User)
	if err != nil {
		return errors.Wrap(err, "querying payment history")
	}
	return ctx.JSON(http.StatusOK, history)
}

func (api *studentApi) notifications(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	unreadOnly := parseBool(ctx.QueryParam("unread"), false)
	notes, err := api.svc.Notifications.Query(ctx.Request().Context(), p.User.ID, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *studentApi) markNotificationRead(ctx echo.Context) error {
	p, err := getPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Notifications.MarkRead(ctx.Request().Context(), p.User.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Notification marked as read."})
}
