package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/model"
)

// @Summary List my notifications
// @Tags notifications
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Notification
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /notifications [get]
func (h *Handler) Notifications(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	list, err := h.notificationSvc.ListByUser(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// @Summary List my unread notifications
// @Tags notifications
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {array} model.Notification
// @Failure 400,401,500 {object} echo.HTTPError
// @Router /notifications/unread [get]
func (h *Handler) UnreadNotifications(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	list, err := h.notificationSvc.ListUnread(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, list)
}

// @Summary Mark a notification read
// @Tags notifications
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "notification id"
// @Success 200 {object} model.Message
// @Failure 400,401,404,409,500 {object} echo.HTTPError
// @Router /notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	if err = h.notificationSvc.MarkRead(c.Request().Context(), id, p.UserID); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.Message{Message: "Notificación marcada como leída"})
}

// @Summary Mark all my notifications read
// @Tags notifications
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} map[string]int
// @Failure 400,401,409,500 {object} echo.HTTPError
// @Router /notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	n, err := h.notificationSvc.MarkAllRead(c.Request().Context(), p.UserID)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

// @Summary Delete a notification
// @Tags notifications
// @Security ApiKeyAuth
// @Produce json
// @Param id path int true "notification id"
// @Success 204
// @Failure 400,401,404,409,500 {object} echo.HTTPError
// @Router /notifications/{id} [delete]
func (h *Handler) DeleteNotification(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := intParam(c, "id")
	if err != nil {
		return err
	}
	if err = h.notificationSvc.Delete(c.Request().Context(), id, p.UserID); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
