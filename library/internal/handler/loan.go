package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"
)

// @Summary List my loans
// @Tags loans
// @Security ApiKeyAuth
// @Produce json
// @Param active query bool false "only active loans"
// @Success 200 {array} model.LoanView
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /loans/me [get]
func (h *Handler) MyLoans(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	activeOnly := false
	if v := c.QueryParam("active"); v != "" {
		if activeOnly, err = strconv.ParseBool(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active is invalid")
		}
	}
	loans, err := h.loanSvc.ListByUser(c.Request().Context(), p.UserID, activeOnly)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// RenewLoan extends the due date. Borrowers may only renew their own loans.
// @Summary Renew a loan
// @Tags loans
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "loan id"
// @Param request body model.RenewLoanRequest true "request"
// @Success 200 {object} model.Loan
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /loans/{id}/renew [put]
func (h *Handler) RenewLoan(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	var req model.RenewLoanRequest
	if err = bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.IsAdmin(ctx) {
		loan, err := h.loanSvc.Get(ctx, id)
		if err != nil {
			return h.httpError(err)
		}
		if loan.UserID != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "loan belongs to another user")
		}
	}
	loan, err := h.loanSvc.RenewLoan(ctx, id, req.Days)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

// @Summary Lend a copy
// @Tags loans
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param request body model.CreateLoanRequest true "request"
// @Success 201 {object} model.Loan
// @Failure 400,401,403,409,500 {object} echo.HTTPError
// @Router /loans [post]
func (h *Handler) CreateLoan(c echo.Context) error {
	var req model.CreateLoanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	loan, err := h.loanSvc.CreateLoan(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

// @Summary List active loans
// @Tags loans
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.LoanView
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /loans/active [get]
func (h *Handler) ActiveLoans(c echo.Context) error {
	loans, err := h.loanSvc.ListActive(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// @Summary List overdue loans
// @Tags loans
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.LoanView
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /loans/overdue [get]
func (h *Handler) OverdueLoans(c echo.Context) error {
	loans, err := h.loanSvc.ListOverdue(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// @Summary Return a loan
// @Tags loans
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "loan id"
// @Param request body model.ReturnLoanRequest true "request"
// @Success 200 {object} model.Loan
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /loans/{id}/return [put]
func (h *Handler) ReturnLoan(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	var req model.ReturnLoanRequest
	if err = bind(c, &req); err != nil {
		return err
	}
	loan, err := h.loanSvc.ReturnLoan(c.Request().Context(), id, req.Notes)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}
