package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

// @Summary List my fines
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Fine
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /fines/me [get]
func (h *Handler) MyFines(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	fines, err := h.fineSvc.ListByUser(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, fines)
}

// @Summary List my pending fines
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Fine
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /fines/me/pending [get]
func (h *Handler) MyPendingFines(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	fines, err := h.fineSvc.ListPendingByUser(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, fines)
}

// @Summary Summary of my fines
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.FineSummary
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /fines/me/summary [get]
func (h *Handler) MyFineSummary(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	summary, err := h.fineSvc.GetSummary(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// @Summary List all pending fines
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Fine
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /fines/pending [get]
func (h *Handler) PendingFines(c echo.Context) error {
	fines, err := h.fineSvc.ListPending(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, fines)
}

// @Summary List fines of a user
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Param userId path int true "user id"
// @Success 200 {array} model.Fine
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /fines/users/{userId} [get]
func (h *Handler) UserFines(c echo.Context) error {
	userID, err := intParam(c, "userId")
	if err != nil {
		return err
	}
	fines, err := h.fineSvc.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, fines)
}

// @Summary Fine summary of a user
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Param userId path int true "user id"
// @Success 200 {object} model.FineSummary
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /fines/users/{userId}/summary [get]
func (h *Handler) UserFineSummary(c echo.Context) error {
	userID, err := intParam(c, "userId")
	if err != nil {
		return err
	}
	summary, err := h.fineSvc.GetSummary(c.Request().Context(), userID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// @Summary Create a manual fine
// @Tags fines
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param request body model.CreateFineRequest true "request"
// @Success 201 {object} model.Fine
// @Failure 400,401,403,409,500 {object} echo.HTTPError
// @Router /fines [post]
func (h *Handler) CreateFine(c echo.Context) error {
	var req model.CreateFineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	fine, err := h.fineSvc.Create(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, fine)
}

// @Summary Register a fine payment
// @Tags fines
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "fine id"
// @Param request body model.PayFineRequest true "request"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /fines/{id}/pay [post]
func (h *Handler) PayFine(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	var req model.PayFineRequest
	if err = bind(c, &req); err != nil {
		return err
	}
	if err = h.fineSvc.Pay(c.Request().Context(), id, req.Notes); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Multa pagada correctamente"})
}

// @Summary Fine overdue loans now
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.BatchResult
// @Failure 400,401,403,409,500 {object} echo.HTTPError
// @Router /fines/generate [post]
func (h *Handler) GenerateFines(c echo.Context) error {
	return c.JSON(http.StatusOK, h.fineSvc.GenerateAutomaticFines(c.Request().Context()))
}

// @Summary Settle fines of returned loans
// @Tags fines
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.BatchResult
// @Failure 400,401,403,409,500 {object} echo.HTTPError
// @Router /fines/reconcile [post]
func (h *Handler) ReconcileFines(c echo.Context) error {
	return c.JSON(http.StatusOK, h.fineSvc.CorrectFinesForReturnedLoans(c.Request().Context()))
}
