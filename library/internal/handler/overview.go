package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

// Overview gathers the caller's fines, reservations, active loans and unread notifications.
// @Summary My dashboard
// @Tags overview
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} model.Overview
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /me/overview [get]
func (h *Handler) Overview(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	var out model.Overview
	eg, ctx := errgroup.WithContext(c.Request().Context())
	eg.Go(func() (err error) {
		out.Fines, err = h.fineSvc.GetSummary(ctx, p.UserID)
		return err
	})
	eg.Go(func() (err error) {
		out.Reservations, err = h.reservationSvc.ListByUser(ctx, p.UserID)
		return err
	})
	eg.Go(func() (err error) {
		out.Loans, err = h.loanSvc.ListByUser(ctx, p.UserID, true)
		return err
	})
	eg.Go(func() (err error) {
		out.Notifications, err = h.notificationSvc.ListUnread(ctx, p.UserID)
		return err
	})
	if err = eg.Wait(); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}
