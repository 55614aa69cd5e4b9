package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"
)

// CreateReservation reserves a book for the caller. Staff may reserve on behalf of a user.
// @Summary Reserve a book
// @Tags reservations
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param request body model.CreateReservationRequest true "request"
// @Success 201 {object} model.Reservation
// @Failure 400,401,409,500 {object} echo.HTTPError
// @Router /reservations [post]
func (h *Handler) CreateReservation(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	var req model.CreateReservationRequest
	if err = bind(c, &req); err != nil {
		return err
	}
	if req.UserID <= 0 || !auth.IsAdmin(c.Request().Context()) {
		req.UserID = p.UserID
	}
	res, err := h.reservationSvc.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// @Summary List my reservations
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.ReservationView
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /reservations/me [get]
func (h *Handler) MyReservations(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	list, err := h.reservationSvc.ListByUser(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// @Summary Reservations waiting for pickup
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.ReservationView
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /reservations/pickup [get]
func (h *Handler) PickupReservations(c echo.Context) error {
	list, err := h.reservationSvc.ListForPickup(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// @Summary Waiting queues
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.ReservationView
// @Failure 400,401,403,500 {object} echo.HTTPError
// @Router /reservations/waiting [get]
func (h *Handler) WaitingReservations(c echo.Context) error {
	list, err := h.reservationSvc.ListWaiting(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// @Summary Cancel a reservation
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "reservation id"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id} [delete]
func (h *Handler) CancelReservation(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err = h.reservationSvc.Cancel(ctx, id, p.UserID, auth.IsAdmin(ctx)); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Reserva cancelada"})
}

// @Summary Reject a reservation
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "reservation id"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id}/reject [post]
func (h *Handler) RejectReservation(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	if err = h.reservationSvc.Cancel(c.Request().Context(), id, p.UserID, true); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Reserva rechazada"})
}

// @Summary Change reservation type
// @Tags reservations
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path int true "reservation id"
// @Param request body model.ChangeTypeRequest true "request"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id}/type [post]
func (h *Handler) ChangeReservationType(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	var req model.ChangeTypeRequest
	if err = c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err = h.reservationSvc.ChangeType(c.Request().Context(), id, req.Type); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Tipo de reserva actualizado"})
}

// @Summary Approve a reservation and lend the copy
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "reservation id"
// @Success 200 {object} model.ApproveResult
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id}/approve [post]
func (h *Handler) ApproveReservation(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	out, err := h.reservationSvc.Approve(c.Request().Context(), id, p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// @Summary Expire a reservation
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "reservation id"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id}/expire [post]
func (h *Handler) ExpireReservation(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	if err = h.reservationSvc.Expire(c.Request().Context(), id); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Reserva expirada"})
}

// @Summary Mark a reservation completed
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "reservation id"
// @Success 200 {object} model.Message
// @Failure 400,401,403,404,409,500 {object} echo.HTTPError
// @Router /reservations/{id}/complete [post]
func (h *Handler) CompleteReservation(c echo.Context) error {
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	if err = h.reservationSvc.MarkCompleted(c.Request().Context(), id); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Reserva completada"})
}

// @Summary Expire reservations past their pickup deadline
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.BatchResult
// @Failure 400,401,403,409,500 {object} echo.HTTPError
// @Router /reservations/expire-overdue [post]
func (h *Handler) ExpireOverduePickups(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reservationSvc.ExpireOverduePickups(c.Request().Context()))
}

// @Summary Place in the waiting queue
// @Tags reservations
// @Security ApiKeyAuth
// @Produce json
// @Param bookId path int true "book id"
// @Param reservationId path int true "reservation id"
// @Success 200 {object} model.QueuePosition
// @Failure 400,401,404,500 {object} echo.HTTPError
// @Router /reservations/queue/{bookId}/{reservationId} [get]
func (h *Handler) QueuePosition(c echo.Context) error {
	bookID, err := intParam(c, "bookId")
	if err != nil {
		return err
	}
	reservationID, err := intParam(c, "reservationId")
	if err != nil {
		return err
	}
	pos, err := h.reservationSvc.GetQueuePosition(c.Request().Context(), bookID, reservationID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, pos)
}
