package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/errs"
	_ "github.com/Danerick15/biblioteca-facultad-erick-sub001/library/swagger"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"
	md "github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/middleware"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/validate"
)

type Services struct {
	Fines         FineService
	Reservations  ReservationService
	Loans         LoanService
	Notifications NotificationService
}

type Handler struct {
	fineSvc         FineService
	reservationSvc  ReservationService
	loanSvc         LoanService
	notificationSvc NotificationService

	metrics *metrics.Metrics
	jwtKey  []byte
	sso     echo.MiddlewareFunc
	log     *zap.Logger
}

type Option func(h *Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithJWTKey switches identity from the gateway headers to signed bearer tokens.
func WithJWTKey(key string) Option {
	return func(h *Handler) {
		if key != "" {
			h.jwtKey = []byte(key)
		}
	}
}

// WithSSO trusts tokens from the university identity provider. It wins over WithJWTKey.
func WithSSO(mw echo.MiddlewareFunc) Option {
	return func(h *Handler) {
		h.sso = mw
	}
}

func New(svc Services, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		fineSvc:         svc.Fines,
		reservationSvc:  svc.Reservations,
		loanSvc:         svc.Loans,
		notificationSvc: svc.Notifications,
		log:             log.Named("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// @title Library circulation API
// @version 1.0
// @description Fines, reservations, loans and notifications of the faculty library.
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))
	if h.metrics != nil {
		e.Use(md.Metrics(h.metrics))
	}

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)
	if h.metrics != nil {
		base.GET("/manage/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
		h.identity(),
	)
	admin := md.RequireAdmin

	api.GET("/fines/me", h.MyFines)
	api.GET("/fines/me/pending", h.MyPendingFines)
	api.GET("/fines/me/summary", h.MyFineSummary)
	api.GET("/fines/pending", h.PendingFines, admin)
	api.GET("/fines/users/:userId", h.UserFines, admin)
	api.GET("/fines/users/:userId/summary", h.UserFineSummary, admin)
	api.POST("/fines", h.CreateFine, admin)
	api.POST("/fines/:id/pay", h.PayFine, admin)
	api.POST("/fines/generate", h.GenerateFines, admin)
	api.POST("/fines/reconcile", h.ReconcileFines, admin)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations/me", h.MyReservations)
	api.GET("/reservations/queue/:bookId/:reservationId", h.QueuePosition)
	api.DELETE("/reservations/:id", h.CancelReservation)
	api.GET("/reservations/pickup", h.PickupReservations, admin)
	api.GET("/reservations/waiting", h.WaitingReservations, admin)
	api.POST("/reservations/:id/type", h.ChangeReservationType, admin)
	api.POST("/reservations/:id/approve", h.ApproveReservation, admin)
	api.POST("/reservations/:id/reject", h.RejectReservation, admin)
	api.POST("/reservations/:id/expire", h.ExpireReservation, admin)
	api.POST("/reservations/:id/complete", h.CompleteReservation, admin)
	api.POST("/reservations/expire-overdue", h.ExpireOverduePickups, admin)

	api.GET("/loans/me", h.MyLoans)
	api.PUT("/loans/:id/renew", h.RenewLoan)
	api.POST("/loans", h.CreateLoan, admin)
	api.GET("/loans/active", h.ActiveLoans, admin)
	api.GET("/loans/overdue", h.OverdueLoans, admin)
	api.PUT("/loans/:id/return", h.ReturnLoan, admin)

	api.GET("/notifications", h.Notifications)
	api.GET("/notifications/unread", h.UnreadNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)
	api.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	api.DELETE("/notifications/:id", h.DeleteNotification)

	api.GET("/me/overview", h.Overview)

	return e
}

func (h *Handler) identity() echo.MiddlewareFunc {
	if h.sso != nil {
		return h.sso
	}
	if len(h.jwtKey) > 0 {
		return md.JwtAuthentication(h.jwtKey)
	}
	return md.AuthContext
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps service errors onto HTTP statuses. Rule errors keep their user-facing text;
// unexpected errors are logged and answered with a generic message.
func (h *Handler) httpError(err error) *echo.HTTPError {
	var rule *errs.RuleError
	switch {
	case errors.As(err, &rule):
		return echo.NewHTTPError(http.StatusBadRequest, rule.Message)
	case errors.Is(err, errs.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func intParam(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return v, nil
}

func profile(c echo.Context) (auth.Profile, error) {
	p, err := auth.GetProfile(c.Request().Context())
	if err != nil {
		return auth.Profile{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return p, nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
